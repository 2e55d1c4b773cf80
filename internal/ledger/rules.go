package ledger

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Chart of accounts used by the heuristic (Czech statutory chart,
// vyhláška č. 500/2002 Sb.).
const (
	AccountCashRegister    = "211" // Pokladna
	AccountBank            = "221" // Bankovní účet
	AccountInTransit       = "261" // Peníze na cestě (card payments only)
	AccountReceivables     = "311" // Odběratelé
	AccountPayables        = "321" // Dodavatelé
	AccountFixedAssets     = "042" // Pořízení dlouhodobého majetku
	AccountMaterials       = "501" // Spotřeba materiálu
	AccountEnergy          = "502" // Spotřeba energie
	AccountResoldGoods     = "504" // Prodané zboží
	AccountRepairs         = "511" // Opravy a udržování
	AccountTravel          = "512" // Cestovné
	AccountEntertainment   = "513" // Reprezentace
	AccountServices        = "518" // Ostatní služby
	AccountRevenueOwn      = "601" // Tržby za vlastní výrobky
	AccountRevenueServices = "602" // Tržby za služby
	AccountRevenueGoods    = "604" // Tržby za zboží
)

// Accounting codes (Pohoda import series).
const (
	CodeReceivedInvoice = "3Fv"   // documents with a due date
	CodeCashDocument    = "UD"    // settled at point of sale
	CodeUnknown         = "NEVIM" // heuristic could not decide
)

// ExpenseRule maps line-item keywords to a debit expense account.
type ExpenseRule struct {
	Account  string   `yaml:"account"`
	Keywords []string `yaml:"keywords"`
}

// Rules holds the keyword tables and thresholds driving the deterministic
// resolver. Order of expense rules matters: the first matching rule wins.
type Rules struct {
	Expenses []ExpenseRule `yaml:"expenses"`

	// ServiceKeywords and OwnProductionKeywords pick the revenue account
	// for issued invoices; anything else is treated as a sale of goods.
	ServiceKeywords       []string `yaml:"service_keywords"`
	OwnProductionKeywords []string `yaml:"own_production_keywords"`

	// FixedAssetThreshold is the item value above which a purchase books
	// to fixed-asset acquisition instead of an expense account.
	FixedAssetThreshold float64 `yaml:"fixed_asset_threshold"`
}

// DefaultRules returns the built-in keyword table.
func DefaultRules() *Rules {
	return &Rules{
		Expenses: []ExpenseRule{
			{Account: AccountEnergy, Keywords: []string{"elektřina", "elektrina", "plyn", "voda", "vodné", "energie"}},
			{Account: AccountRepairs, Keywords: []string{"oprava", "servis", "údržba", "udrzba"}},
			{Account: AccountTravel, Keywords: []string{"jízdenka", "jizdenka", "dálnice", "dalnice", "parkování", "parkovani", "ubytování", "ubytovani", "letenka", "taxi"}},
			{Account: AccountEntertainment, Keywords: []string{"reprezentace", "občerstvení", "obcerstveni", "dárek", "darek", "pohoštění", "pohosteni"}},
			{Account: AccountServices, Keywords: []string{"nájem", "najem", "nájemné", "najemne", "telefon", "internet", "software", "licence", "právní", "pravni", "marketing", "reklama", "účetní", "ucetni"}},
			{Account: AccountResoldGoods, Keywords: []string{"zboží", "zbozi"}},
			{Account: AccountMaterials, Keywords: []string{"benzín", "benzin", "nafta", "natural", "diesel", "olej", "phm", "papír", "papir", "toner", "kancelář", "kancelar"}},
		},
		ServiceKeywords:       []string{"služba", "sluzba", "služby", "sluzby", "práce", "prace", "konzultace", "poradenství", "poradenstvi", "servis"},
		OwnProductionKeywords: []string{"výrobek", "vyrobek", "výrobky", "vyrobky", "vlastní výroba", "vlastni vyroba"},
		FixedAssetThreshold:   40000,
	}
}

// LoadRules reads a rules file in YAML format, filling unset fields from
// the defaults.
func LoadRules(path string) (*Rules, error) {
	const op = "LoadRules"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read rules file: %w", op, err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("%s: failed to parse rules file: %w", op, err)
	}
	if rules.FixedAssetThreshold <= 0 {
		rules.FixedAssetThreshold = DefaultRules().FixedAssetThreshold
	}
	return rules, nil
}

// matchExpense returns the first expense account whose keywords appear in
// the text, or "" when nothing matches.
func (r *Rules) matchExpense(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range r.Expenses {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Account
			}
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
