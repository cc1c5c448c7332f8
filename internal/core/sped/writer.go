// internal/core/sped/writer.go
package sped

import (
	"fmt"
	"strconv"
	"strings"

	"sped-service/internal/domain"
)

// Fixed codes of the C100 document header.
const (
	docModel     = "55"
	docSituation = "00"
	docSeries    = "1"
)

// controlRegisters are listed in block 9 as 9900 records. The list is static
// and limited to the opening records of block 0.
var controlRegisters = []string{"0000", "0001"}

// ledgerWriter accumulates records and keeps the running line count of each
// block, keyed by the block indicator (first character of the register).
type ledgerWriter struct {
	lines  []string
	blocks map[byte]int
}

func newLedgerWriter() *ledgerWriter {
	return &ledgerWriter{blocks: make(map[byte]int)}
}

// record appends one |REG|field|...| line.
func (w *ledgerWriter) record(register string, fields ...string) {
	var b strings.Builder
	b.WriteByte('|')
	b.WriteString(register)
	b.WriteByte('|')
	for _, f := range fields {
		b.WriteString(sanitizeField(f))
		b.WriteByte('|')
	}
	w.lines = append(w.lines, b.String())
	w.blocks[register[0]]++
}

// closeBlock appends the block's closing count record. The count includes the
// closing line itself plus extra lines still to be written in the block.
func (w *ledgerWriter) closeBlock(register string, extra int) {
	count := w.blocks[register[0]] + 1 + extra
	w.record(register, strconv.Itoa(count))
}

func (w *ledgerWriter) String() string {
	if len(w.lines) == 0 {
		return ""
	}
	return strings.Join(w.lines, "\n") + "\n"
}

// Generate serializes the adjusted records into the ledger text. Only
// documents addressed to the configured CNPJ go into block C.
func Generate(records []domain.InvoiceRecord, cfg domain.RunConfig) string {
	w := newLedgerWriter()
	cnpj := domain.OnlyDigits(cfg.TaxID)

	writeBlock0(w, records, cfg, cnpj)
	writeBlockC(w, records, cnpj)
	w.closeBlock("E990", 0)
	writeBlock9(w)

	return w.String()
}

func writeBlock0(w *ledgerWriter, records []domain.InvoiceRecord, cfg domain.RunConfig, cnpj string) {
	company := cfg.Company
	monthYear := fmt.Sprintf("%02d%04d", int(cfg.Period.Month), cfg.Period.Year)

	w.record("0000",
		cfg.ReportType.LayoutCode(),
		"0",
		monthYear,
		"01"+monthYear,
		strconv.Itoa(cfg.Period.LastDay())+monthYear,
		cnpj,
		orPlaceholder(company.Name, "RAZAO SOCIAL EXEMPLO"),
		orPlaceholder(company.UF, "UF"),
		orPlaceholder(company.IE, "IE"),
		orPlaceholder(company.Municipality, "COD_MUN"),
		orPlaceholder(company.IM, "IM"),
		string(cfg.Profile),
		"1",
	)
	w.record("0001", "0")
	w.record("0150",
		"", "", "",
		cnpj,
		orPlaceholder(company.IE, "IE"),
		orPlaceholder(company.Municipality, "COD_MUN"),
		"",
		orPlaceholder(company.Street, "ENDERECO"),
		orPlaceholder(company.Number, "NUM"),
		orPlaceholder(company.Complement, "COMPLEMENTO"),
		orPlaceholder(company.District, "BAIRRO"),
	)

	// One 0200 per product code, from its first occurrence.
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, item := range rec.Items {
			if seen[item.Code] {
				continue
			}
			seen[item.Code] = true
			w.record("0200", item.Code, item.Description, item.Code, item.NCM, "", "", item.Unit, "1")
		}
	}

	w.closeBlock("0990", 0)
}

func writeBlockC(w *ledgerWriter, records []domain.InvoiceRecord, cnpj string) {
	seq := 0
	for _, rec := range records {
		if domain.OnlyDigits(rec.RecipientCnpj) != cnpj {
			continue
		}
		seq++
		seqField := strconv.Itoa(seq)
		date := formatDate(rec.Date)
		total := FormatValue(rec.TotalValue)

		w.record("C100",
			"0", seqField, rec.EmitterCnpj, docModel, docSituation, docSeries,
			rec.Number, rec.Key, date, date, total,
			"0", "0,00", "0,00", "0,00", total, "9",
			"0,00", "0,00", "0,00", "0,00", "0,00", "0,00", "0,00",
		)

		for _, item := range rec.Items {
			w.record("C170",
				seqField, item.Code, item.Description,
				FormatValue(item.Quantity), item.Unit, FormatValue(item.TotalValue),
				"0,00", "0",
				item.AdjustedCstIcms, item.AdjustedCfop,
				"5.00", "",
				FormatValue(item.BcIcms), FormatValue(item.AliqIcms), FormatValue(item.IcmsValue),
				"0,00", "0,00", "0",
				item.CstPis, "0,00", "0,00", "0,00", "0,00", "0",
				item.CstCofins, "0,00", "0,00", "0,00", "0,00", "",
			)
		}
	}
	w.closeBlock("C990", 0)
}

func writeBlock9(w *ledgerWriter) {
	w.record("9001", "0")
	for _, reg := range controlRegisters {
		w.record("9900", reg, "1")
	}
	// 9990 counts itself and the 9999 that follows.
	w.closeBlock("9990", 1)
	w.record("9999", strconv.Itoa(len(w.lines)+1))
}
