package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"digiucto/internal/logger"
	"digiucto/pkg/models"
	"digiucto/pkg/services"
)

// OpenAISuggester implements services.LedgerSuggester with a chat model.
// It is consulted only for documents the deterministic heuristic cannot
// decide; an uncertain model answer is returned as Unknown, never guessed.
type OpenAISuggester struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAISuggester creates a suggester using the given API key.
func NewOpenAISuggester(apiKey, model string) (*OpenAISuggester, error) {
	const op = "NewOpenAISuggester"

	if apiKey == "" {
		return nil, fmt.Errorf("%s: API key is required", op)
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAISuggester{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    logger.WithComponent("ledger-suggester"),
	}, nil
}

type suggestionResponse struct {
	AccountingCode string `json:"predkontace"`
	DebitAccount   string `json:"predkontace_md"`
	CreditAccount  string `json:"predkontace_d"`
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Suggest asks the model for an account assignment for the document.
func (s *OpenAISuggester) Suggest(ctx context.Context, doc *models.Document) (*services.LedgerSuggestion, error) {
	const op = "Suggest"

	s.log.Info().
		Str("document_id", doc.ID).
		Str("type", string(doc.Type)).
		Str("supplier", doc.SupplierName).
		Float64("amount", doc.TotalAmount).
		Msg("Requesting ledger suggestion")

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.1,
		MaxTokens:   300,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: s.buildPrompt(doc)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no response choices", op)
	}

	content := resp.Choices[0].Message.Content
	match := jsonObject.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("%s: response contains no JSON object (response: %s)", op, content)
	}

	var parsed suggestionResponse
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, fmt.Errorf("%s: failed to parse response JSON: %w (response: %s)", op, err, content)
	}

	if parsed.AccountingCode == CodeUnknown || parsed.DebitAccount == "" || parsed.CreditAccount == "" {
		s.log.Info().
			Str("document_id", doc.ID).
			Msg("Model declined to assign accounts")
		return &services.LedgerSuggestion{Unknown: true}, nil
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("code", parsed.AccountingCode).
		Str("debit", parsed.DebitAccount).
		Str("credit", parsed.CreditAccount).
		Msg("Ledger suggestion received")

	return &services.LedgerSuggestion{
		AccountingCode: parsed.AccountingCode,
		DebitAccount:   parsed.DebitAccount,
		CreditAccount:  parsed.CreditAccount,
	}, nil
}

func (s *OpenAISuggester) systemPrompt() string {
	return `Jsi expert na české podvojné účetnictví podle vyhlášky č. 500/2002 Sb.

PRAVIDLA:
- Má doklad datum splatnosti? ANO → predkontace "3Fv", D "321". NE → predkontace "UD", D podle formy úhrady: hotově "211", kartou "261", převodem "221".
- MD podle obsahu nákupu: pohonné hmoty a materiál "501", energie "502", prodané zboží "504", opravy "511", cestovné "512", reprezentace "513", služby (nájem, telefon, software, právní) "518", majetek nad 40 000 Kč "042".
- Účet 261 (peníze na cestě) POUZE pro platby kartou.
- Pokud si nejsi jistý, vrať predkontace "NEVIM" a prázdné účty. Lepší přiznat nejistotu než zaúčtovat špatně.

Odpověz VÝHRADNĚ validním JSON ve tvaru:
{"predkontace": "3Fv|UD|NEVIM", "predkontace_md": "3 číslice nebo prázdné", "predkontace_d": "3 číslice nebo prázdné"}`
}

func (s *OpenAISuggester) buildPrompt(doc *models.Document) string {
	var b strings.Builder

	b.WriteString("Urči předkontaci pro tento doklad:\n")
	fmt.Fprintf(&b, "- Typ dokladu: %s\n", doc.Type)
	fmt.Fprintf(&b, "- Dodavatel: %s\n", doc.SupplierName)
	fmt.Fprintf(&b, "- Částka: %.2f %s\n", doc.TotalAmount, doc.Currency)
	fmt.Fprintf(&b, "- Forma úhrady: %s\n", doc.PaymentMethod)
	if doc.DueDate != "" {
		fmt.Fprintf(&b, "- Datum splatnosti: %s\n", doc.DueDate)
	} else {
		b.WriteString("- Datum splatnosti: NENÍ\n")
	}
	if len(doc.Items) > 0 {
		fmt.Fprintf(&b, "- Položky: %s\n", itemText(doc))
	}
	b.WriteString("\nOdpověz pouze JSON objektem.")

	return b.String()
}
