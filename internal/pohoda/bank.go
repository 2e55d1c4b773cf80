package pohoda

import (
	"fmt"
	"strings"

	"digiucto/pkg/models"
)

// FormatBankTransactions serializes a batch of bank transactions into a
// Pohoda bank import data pack. One record is emitted per transaction in
// input order.
func (f *Formatter) FormatBankTransactions(txs []*models.BankTransaction) ([]byte, error) {
	const op = "FormatBankTransactions"

	if len(txs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}
	for _, tx := range txs {
		if tx.Status == models.TransactionAccounted {
			return nil, fmt.Errorf("%s: transaction %s is already accounted: %w", op, tx.ID, ErrFormat)
		}
		if tx.Date == "" {
			return nil, fmt.Errorf("%s: transaction %s has no statement date: %w", op, tx.ID, ErrFormat)
		}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<dat:dataPack id="Import_bankovnich_transakci" ico="00000000" application="%s" version="2.0" note="Import bankovních transakcí" xmlns:dat="http://www.stormware.cz/schema/version_2/data.xsd" xmlns:bnk="http://www.stormware.cz/schema/version_2/bank.xsd" xmlns:typ="http://www.stormware.cz/schema/version_2/type.xsd">`,
		escape(f.opts.Application))

	for i, tx := range txs {
		f.writeBankTransaction(&b, tx, i+1)
	}

	b.WriteString("\n</dat:dataPack>\n")

	f.log.Info().
		Int("transactions", len(txs)).
		Int("bytes", b.Len()).
		Msg("Bank export generated")
	return []byte(b.String()), nil
}

func (f *Formatter) writeBankTransaction(b *strings.Builder, tx *models.BankTransaction, dataID int) {
	bankType := "issue"
	if tx.IsIncoming() {
		bankType = "receipt"
	}

	fmt.Fprintf(b, "\n  <dat:dataPackItem id=\"%d\" version=\"2.0\">\n", dataID)
	b.WriteString("    <bnk:bank version=\"2.0\">\n")
	b.WriteString("      <bnk:bankHeader>\n")
	fmt.Fprintf(b, "        <bnk:bankType>%s</bnk:bankType>\n", bankType)
	b.WriteString("        <bnk:account>\n")
	b.WriteString("          <typ:ids>Hlavní účet</typ:ids>\n")
	b.WriteString("        </bnk:account>\n")
	b.WriteString("        <bnk:statementNumber>\n")
	fmt.Fprintf(b, "          <typ:statementNumber>%s</typ:statementNumber>\n",
		strings.ReplaceAll(tx.Date, "-", ""))
	b.WriteString("        </bnk:statementNumber>\n")
	fmt.Fprintf(b, "        <bnk:symVar>%s</bnk:symVar>\n", escape(tx.VariableSymbol))
	if tx.ConstantSymbol != "" {
		fmt.Fprintf(b, "        <bnk:symConst>%s</bnk:symConst>\n", escape(tx.ConstantSymbol))
	}
	if tx.SpecificSymbol != "" {
		fmt.Fprintf(b, "        <bnk:symSpec>%s</bnk:symSpec>\n", escape(tx.SpecificSymbol))
	}
	fmt.Fprintf(b, "        <bnk:dateStatement>%s</bnk:dateStatement>\n", escape(tx.Date))
	fmt.Fprintf(b, "        <bnk:datePayment>%s</bnk:datePayment>\n", escape(tx.Date))
	fmt.Fprintf(b, "        <bnk:text>%s</bnk:text>\n", escape(tx.Description))
	b.WriteString("        <bnk:partnerIdentity>\n")
	b.WriteString("          <typ:address>\n")
	fmt.Fprintf(b, "            <typ:company>%s</typ:company>\n", escape(tx.CounterpartyName))
	b.WriteString("          </typ:address>\n")
	b.WriteString("        </bnk:partnerIdentity>\n")
	b.WriteString("        <bnk:paymentAccount>\n")
	fmt.Fprintf(b, "          <typ:accountNo>%s</typ:accountNo>\n", escape(tx.CounterpartyAccount))
	b.WriteString("        </bnk:paymentAccount>\n")
	b.WriteString("        <bnk:homeCurrency>\n")
	fmt.Fprintf(b, "          <typ:price>%s</typ:price>\n", amount(tx.AbsAmount()))
	b.WriteString("        </bnk:homeCurrency>\n")
	b.WriteString("      </bnk:bankHeader>\n")
	b.WriteString("    </bnk:bank>\n")
	b.WriteString("  </dat:dataPackItem>")
}
