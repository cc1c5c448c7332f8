package sped

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"sped-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() domain.RunConfig {
	return domain.RunConfig{
		TaxID:      "11.222.333/0001-81",
		Period:     domain.Period{Year: 2024, Month: time.February},
		Profile:    domain.ProfileA,
		ReportType: domain.ReportICMSIPI,
	}
}

func inbound(number, key string, items ...domain.LineItem) domain.InvoiceRecord {
	return domain.InvoiceRecord{
		Key:           key,
		Number:        number,
		Date:          "2024-02-10T09:00:00-03:00",
		TotalValue:    1234.5,
		EmitterCnpj:   "99888777000166",
		RecipientCnpj: "11222333000181",
		Items:         items,
	}
}

func item(code, cfop, cst string) domain.LineItem {
	return domain.LineItem{
		Code:            code,
		Description:     "PRODUTO " + code,
		NCM:             "73181500",
		Cfop:            cfop,
		CstIcms:         cst,
		CstPis:          "01",
		CstCofins:       "01",
		Unit:            "UN",
		Quantity:        2,
		TotalValue:      100,
		BcIcms:          100,
		AliqIcms:        18,
		IcmsValue:       18,
		AdjustedCfop:    "1" + cfop[1:],
		AdjustedCstIcms: "50",
	}
}

func lines(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func findLine(t *testing.T, all []string, prefix string) (int, string) {
	t.Helper()
	for i, l := range all {
		if strings.HasPrefix(l, prefix) {
			return i, l
		}
	}
	t.Fatalf("no line with prefix %q", prefix)
	return -1, ""
}

func countOf(t *testing.T, line string) int {
	t.Helper()
	fields := strings.Split(line, "|")
	require.GreaterOrEqual(t, len(fields), 3)
	n, err := strconv.Atoi(fields[2])
	require.NoError(t, err)
	return n
}

func countPrefix(all []string, prefix string) int {
	n := 0
	for _, l := range all {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestGenerate_CountRecordsMatchContent(t *testing.T) {
	records := []domain.InvoiceRecord{
		inbound("1", "KEY1", item("A", "5102", "00"), item("B", "6108", "20")),
		inbound("2", "KEY2", item("C", "5405", "40")),
	}
	text := Generate(records, testConfig())
	all := lines(text)

	require.True(t, strings.HasSuffix(text, "\n"))
	for _, l := range all {
		assert.True(t, strings.HasPrefix(l, "|") && strings.HasSuffix(l, "|"), l)
	}

	open, _ := findLine(t, all, "|0000|")
	idx0990, l0990 := findLine(t, all, "|0990|")
	assert.Equal(t, idx0990-open+1, countOf(t, l0990))
	assert.Equal(t, idx0990+1, countOf(t, l0990), "block 0 opens the file")

	_, lC990 := findLine(t, all, "|C990|")
	assert.Equal(t, countPrefix(all, "|C"), countOf(t, lC990))

	_, lE990 := findLine(t, all, "|E990|")
	assert.Equal(t, 1, countOf(t, lE990))

	_, l9990 := findLine(t, all, "|9990|")
	assert.Equal(t, countPrefix(all, "|9"), countOf(t, l9990))

	last := all[len(all)-1]
	require.True(t, strings.HasPrefix(last, "|9999|"))
	assert.Equal(t, len(all), countOf(t, last))

	report, err := VerifyText(text)
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestGenerate_BlockOrder(t *testing.T) {
	text := Generate([]domain.InvoiceRecord{inbound("1", "K", item("A", "5102", "00"))}, testConfig())
	order := ""
	for _, l := range lines(text) {
		block := l[1:2]
		if !strings.HasSuffix(order, block) {
			order += block
		}
	}
	assert.Equal(t, "0CE9", order)
}

func TestGenerate_OpeningRecord(t *testing.T) {
	text := Generate(nil, testConfig())
	all := lines(text)

	assert.Equal(t, "|0000|017|0|022024|01022024|29022024|11222333000181|RAZAO SOCIAL EXEMPLO|UF|IE|COD_MUN|IM|A|1|", all[0])
	assert.Equal(t, "|0001|0|", all[1])
	assert.Equal(t, "|0150||||11222333000181|IE|COD_MUN||ENDERECO|NUM|COMPLEMENTO|BAIRRO|", all[2])
	assert.Equal(t, "|0990|4|", all[3])
	assert.Equal(t, "|C990|1|", all[4])
	assert.Equal(t, "|E990|1|", all[5])
	assert.Equal(t, []string{
		"|9001|0|",
		"|9900|0000|1|",
		"|9900|0001|1|",
		"|9990|5|",
		"|9999|11|",
	}, all[6:])
	assert.Len(t, all, 11)
}

func TestGenerate_CompanyAndReportType(t *testing.T) {
	cfg := testConfig()
	cfg.Period = domain.Period{Year: 2023, Month: time.November}
	cfg.ReportType = domain.ReportContribuicoes
	cfg.Profile = domain.ProfileC
	cfg.Company = domain.Company{Name: "ACME | LTDA", UF: "SP", Street: "RUA A"}

	all := lines(Generate(nil, cfg))
	assert.Equal(t, "|0000|006|0|112023|01112023|30112023|11222333000181|ACME   LTDA|SP|IE|COD_MUN|IM|C|1|", all[0])
	assert.Contains(t, all[2], "|RUA A|NUM|")
}

func TestGenerate_DocumentRecords(t *testing.T) {
	rec := inbound("1234", "3524KEY", item("P001", "5405", "00"))
	rec.Items[0].Quantity = 10
	rec.Items[0].TotalValue = 25
	rec.Items[0].BcIcms = 25
	rec.Items[0].IcmsValue = 4.5

	all := lines(Generate([]domain.InvoiceRecord{rec}, testConfig()))

	_, c100 := findLine(t, all, "|C100|")
	assert.Equal(t,
		"|C100|0|1|99888777000166|55|00|1|1234|3524KEY|10022024|10022024|1234,50|0|0,00|0,00|0,00|1234,50|9|0,00|0,00|0,00|0,00|0,00|0,00|0,00|",
		c100)

	_, c170 := findLine(t, all, "|C170|")
	assert.Equal(t,
		"|C170|1|P001|PRODUTO P001|10,00|UN|25,00|0,00|0|50|1405|5.00||25,00|18,00|4,50|0,00|0,00|0|01|0,00|0,00|0,00|0,00|0|01|0,00|0,00|0,00|0,00||",
		c170)
}

func TestGenerate_SequenceNumbersFollowIncludedDocuments(t *testing.T) {
	outsider := inbound("2", "K2", item("B", "5102", "00"))
	outsider.RecipientCnpj = "00000000000000"
	records := []domain.InvoiceRecord{
		inbound("1", "K1", item("A", "5102", "00")),
		outsider,
		inbound("3", "K3", item("C", "5102", "00"), item("D", "5102", "00")),
	}

	all := lines(Generate(records, testConfig()))
	var seqs []string
	for _, l := range all {
		if strings.HasPrefix(l, "|C100|") || strings.HasPrefix(l, "|C170|") {
			f := strings.Split(l, "|")
			if f[1] == "C100" {
				seqs = append(seqs, "H"+f[3])
			} else {
				seqs = append(seqs, "I"+f[2])
			}
		}
	}
	assert.Equal(t, []string{"H1", "I1", "H2", "I2", "I2"}, seqs)
}

func TestGenerate_RecipientFilter(t *testing.T) {
	other := inbound("9", "OTHER", item("X", "5102", "00"))
	other.RecipientCnpj = "55.444.333/0001-22"
	formatted := inbound("10", "MINE", item("Y", "5102", "00"))
	formatted.RecipientCnpj = "11.222.333/0001-81"

	text := Generate([]domain.InvoiceRecord{other, formatted}, testConfig())
	all := lines(text)

	assert.NotContains(t, text, "|OTHER|")
	assert.Equal(t, 1, countPrefix(all, "|C100|"))
	assert.Equal(t, 1, countPrefix(all, "|C170|"))
	assert.Contains(t, text, "|MINE|")
	assert.Contains(t, text, "|0200|X|", "products of skipped documents are still registered")
}

func TestGenerate_ProductDeduplication(t *testing.T) {
	first := item("SHARED", "5102", "00")
	first.Description = "PRIMEIRA DESCRICAO"
	second := item("SHARED", "5102", "00")
	second.Description = "SEGUNDA DESCRICAO"

	records := []domain.InvoiceRecord{
		inbound("1", "K1", first, item("ONLY1", "5102", "00")),
		inbound("2", "K2", second),
	}
	text := Generate(records, testConfig())
	all := lines(text)

	assert.Equal(t, 1, countPrefix(all, "|0200|SHARED|"))
	assert.Equal(t, 2, countPrefix(all, "|0200|"))
	assert.Contains(t, text, "|0200|SHARED|PRIMEIRA DESCRICAO|SHARED|")
	assert.Equal(t, 2, countPrefix(all, "|C170|1|SHARED|")+countPrefix(all, "|C170|2|SHARED|"))
}

func TestGenerate_FreeTextCannotBreakLayout(t *testing.T) {
	it := item("A", "5102", "00")
	it.Description = "LINHA 1\nLINHA|2\t"
	text := Generate([]domain.InvoiceRecord{inbound("1", "K", it)}, testConfig())

	assert.Contains(t, text, "|LINHA 1 LINHA 2|")
	report, err := VerifyText(text)
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "15012024", formatDate("2024-01-15T10:30:00-03:00"))
	assert.Equal(t, "01122023", formatDate("2023-12-01"))
	assert.Equal(t, "", formatDate("2023-12"))

	assert.Equal(t, "0,00", FormatValue(0))
	assert.Equal(t, "1234,50", FormatValue(1234.5))
	assert.Equal(t, "0,13", FormatValue(0.125))
	assert.Equal(t, "-3,10", FormatValue(-3.1))
	assert.Equal(t, "10,00", FormatValue(9.999))
	assert.Equal(t, "1,01", FormatValue(1.005))
	assert.Equal(t, "2,68", FormatValue(2.675))
	assert.Equal(t, "0,00", FormatValue(-0.001))

	assert.Equal(t, "A B", sanitizeField(" A|B "))
	assert.Equal(t, "", sanitizeField(""))
	assert.Equal(t, "LINHA 1 LINHA 2", sanitizeField("LINHA 1\nLINHA|2"))
	assert.Equal(t, "A B C", sanitizeField("\tA\nB\x01C\r"))
	assert.Equal(t, "", sanitizeField("\r\n\t"))
}
