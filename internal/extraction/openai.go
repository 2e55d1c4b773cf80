package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"digiucto/internal/logger"
	"digiucto/internal/validation"
	"digiucto/pkg/models"
	"digiucto/pkg/services"
)

// Config configures the OpenAI document extractor.
type Config struct {
	Model       string  // defaults to gpt-4o-mini
	Temperature float32 // defaults to 0.1
	MaxRetries  int     // defaults to 3
}

// OpenAIExtractor implements services.DocumentExtractor with a vision chat
// model. The output is a best-effort draft: every field goes through the
// standard form validation at verification time, so the extractor never
// needs to be trusted.
type OpenAIExtractor struct {
	client *openai.Client
	config Config
	log    zerolog.Logger
}

// NewOpenAIExtractor creates an extractor using the given API key.
func NewOpenAIExtractor(apiKey string, config Config) (*OpenAIExtractor, error) {
	const op = "NewOpenAIExtractor"

	if apiKey == "" {
		return nil, fmt.Errorf("%s: API key is required", op)
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	return &OpenAIExtractor{
		client: openai.NewClient(apiKey),
		config: config,
		log:    logger.WithComponent("document-extractor"),
	}, nil
}

// extractionResponse mirrors the JSON schema requested from the model.
// Amounts arrive as strings: models mix decimal conventions and the
// tolerant parser sorts them out.
type extractionResponse struct {
	DocumentType   string `json:"document_type"`
	PaymentMethod  string `json:"payment_method"`
	SupplierName   string `json:"supplier_name"`
	SupplierICO    string `json:"supplier_ico"`
	SupplierDIC    string `json:"supplier_dic"`
	SupplierAddr   string `json:"supplier_address"`
	DocumentNumber string `json:"document_number"`
	VariableSymbol string `json:"variable_symbol"`
	IssueDate      string `json:"issue_date"`
	TaxDate        string `json:"tax_date"`
	DueDate        string `json:"due_date"`
	TotalAmount    string `json:"total_amount"`
	Base21         string `json:"base_21"`
	VAT21          string `json:"vat_21"`
	Base12         string `json:"base_12"`
	VAT12          string `json:"vat_12"`
	Base0          string `json:"base_0"`
	Currency       string `json:"currency"`

	Confidence any `json:"confidence"` // string or number, normalized later
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Extract turns a document photo or scan into a draft document.
func (e *OpenAIExtractor) Extract(ctx context.Context, fileBytes []byte, mimeType string) (*services.ExtractionResult, error) {
	const op = "Extract"

	if len(fileBytes) == 0 {
		return nil, fmt.Errorf("%s: empty file", op)
	}
	if !supportedMimeTypes[mimeType] {
		return nil, fmt.Errorf("%s: unsupported mime type %q", op, mimeType)
	}

	e.log.Info().
		Str("mime_type", mimeType).
		Int("bytes", len(fileBytes)).
		Msg("Starting document extraction")

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(fileBytes))

	var lastErr error
	for attempt := 1; attempt <= e.config.MaxRetries; attempt++ {
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       e.config.Model,
			Temperature: e.config.Temperature,
			MaxTokens:   1500,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
						{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						}},
					},
				},
			},
		})
		if err != nil {
			lastErr = err
			e.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", e.config.MaxRetries).
				Msg("Extraction request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices")
			continue
		}

		content := resp.Choices[0].Message.Content
		match := jsonObject.FindString(content)
		if match == "" {
			lastErr = fmt.Errorf("response contains no JSON object")
			e.log.Warn().
				Str("response", content).
				Int("attempt", attempt).
				Msg("Extraction response is not JSON, retrying")
			continue
		}

		var parsed extractionResponse
		if err := json.Unmarshal([]byte(match), &parsed); err != nil {
			lastErr = fmt.Errorf("failed to parse response JSON: %w", err)
			e.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse extraction response, retrying")
			continue
		}

		result := buildResult(&parsed)
		e.log.Info().
			Str("supplier", result.Document.SupplierName).
			Str("type", string(result.Document.Type)).
			Float64("total", result.Document.TotalAmount).
			Float64("confidence", result.Confidence).
			Int("attempt", attempt).
			Msg("Document extraction successful")
		return result, nil
	}

	return nil, fmt.Errorf("%s: all %d attempts failed, last error: %w", op, e.config.MaxRetries, lastErr)
}

// buildResult maps the model's answer onto a draft document, normalizing
// identifiers, dates and amounts on the way.
func buildResult(resp *extractionResponse) *services.ExtractionResult {
	doc := models.Document{
		SupplierName:    strings.TrimSpace(resp.SupplierName),
		SupplierICO:     validation.CleanICO(resp.SupplierICO),
		SupplierDIC:     validation.CleanDIC(resp.SupplierDIC),
		SupplierAddress: strings.TrimSpace(resp.SupplierAddr),
		DocumentNumber:  strings.TrimSpace(resp.DocumentNumber),
		VariableSymbol:  strings.TrimSpace(resp.VariableSymbol),
		Type:            documentType(resp.DocumentType),
		PaymentMethod:   paymentMethod(resp.PaymentMethod),
		IssueDate:       validation.NormalizeDate(resp.IssueDate),
		Currency:        currency(resp.Currency),
		Status:          models.StatusDraft,
	}
	if resp.TaxDate != "" {
		doc.TaxDate = validation.NormalizeDate(resp.TaxDate)
	}
	if resp.DueDate != "" {
		doc.DueDate = validation.NormalizeDate(resp.DueDate)
	}

	doc.TotalAmount = parseAmount(resp.TotalAmount)
	doc.Base21 = parseAmount(resp.Base21)
	doc.VAT21 = parseAmount(resp.VAT21)
	doc.Base12 = parseAmount(resp.Base12)
	doc.VAT12 = parseAmount(resp.VAT12)
	doc.Base0 = parseAmount(resp.Base0)

	confidence := parseConfidence(resp.Confidence)
	doc.ExtractionConfidence = confidence

	return &services.ExtractionResult{Document: doc, Confidence: confidence}
}

func documentType(raw string) models.DocumentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "received_invoice", "faktura", "faktura přijatá", "faktura prijata":
		return models.DocumentReceivedInvoice
	case "issued_invoice", "faktura vydaná", "faktura vydana":
		return models.DocumentIssuedInvoice
	case "tax_document", "daňový doklad", "danovy doklad":
		return models.DocumentTaxDocument
	case "advance_invoice", "zálohová faktura", "zalohova faktura":
		return models.DocumentAdvanceInvoice
	case "credit_note", "dobropis":
		return models.DocumentCreditNote
	default:
		return models.DocumentReceipt
	}
}

func paymentMethod(raw string) models.PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash", "hotově", "hotove":
		return models.PaymentCash
	case "card", "kartou", "karta":
		return models.PaymentCard
	case "bank_transfer", "transfer", "převodem", "prevodem":
		return models.PaymentTransfer
	case "":
		return models.PaymentUnknown
	default:
		return models.PaymentOther
	}
}

func currency(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	switch c {
	case "", "KČ", "KC", "CZK":
		return "CZK"
	case "€", "EUR":
		return "EUR"
	default:
		if len(c) == 3 {
			return c
		}
		return "CZK"
	}
}

// parseAmount handles Czech decimal commas, thousands separators and
// currency leftovers. Unparseable input yields zero; the consistency
// checks at verification time catch what slipped through.
func parseAmount(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0
	}
	for _, junk := range []string{"Kč", "CZK", "€", "EUR", " ", "\u00a0"} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}

	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			// Czech format: dot separates thousands, comma decimals.
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseConfidence(raw any) float64 {
	var v float64
	switch c := raw.(type) {
	case float64:
		v = c
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0
		}
		v = parsed
	default:
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const systemPrompt = `Jsi expert na vytěžování českých účetních dokladů (účtenky, faktury, daňové doklady).

Z obrázku dokladu vytěž všechna pole a vrať VÝHRADNĚ validní JSON:
{
  "document_type": "received_invoice|issued_invoice|receipt|tax_document|advance_invoice|credit_note",
  "payment_method": "cash|card|bank_transfer|other",
  "supplier_name": "název dodavatele",
  "supplier_ico": "IČO (8 číslic)",
  "supplier_dic": "DIČ (CZ + číslice)",
  "supplier_address": "adresa dodavatele",
  "document_number": "číslo dokladu",
  "variable_symbol": "variabilní symbol",
  "issue_date": "YYYY-MM-DD",
  "tax_date": "YYYY-MM-DD (datum zdanitelného plnění)",
  "due_date": "YYYY-MM-DD nebo prázdné pokud není",
  "total_amount": "celková částka s DPH",
  "base_21": "základ daně 21 %",
  "vat_21": "DPH 21 %",
  "base_12": "základ daně 12 %",
  "vat_12": "DPH 12 %",
  "base_0": "částka osvobozená od daně",
  "currency": "CZK",
  "confidence": 0.0-1.0
}

Pole, která na dokladu nejsou, nech prázdná. Nikdy si hodnoty nevymýšlej.`

const userPrompt = "Vytěž data z tohoto dokladu a odpověz pouze JSON objektem."
