package reconciliation

import (
	"bytes"
	"encoding/csv"
	"testing"

	"sped-service/internal/core/sped"
	"sped-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func adjustedRecords() []domain.InvoiceRecord {
	return []domain.InvoiceRecord{
		{
			Source: "nota1.xml",
			Key:    "KEY1",
			Number: "10",
			Items: []domain.LineItem{
				{ID: "10-A", Code: "A", Description: "AÇÚCAR", Cfop: "5405", AdjustedCfop: "1405", CstIcms: "00", AdjustedCstIcms: "50", CstPis: "01", CstCofins: "01", TotalValue: 25},
				{ID: "10-B", Code: "B", Description: "SAL", Cfop: "1403", AdjustedCfop: "1403", CstIcms: "40", AdjustedCstIcms: "40", TotalValue: 3.5},
			},
		},
		{
			Source: "nota2.xml",
			Key:    "KEY2",
			Number: "11",
			Items: []domain.LineItem{
				{ID: "11-C", Code: "C", Cfop: "6108", AdjustedCfop: "2108", CstIcms: "60", AdjustedCstIcms: "60"},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	rows := Build(adjustedRecords())
	require.Len(t, rows, 3)

	assert.Equal(t, "nota1.xml", rows[0].Source)
	assert.Equal(t, "KEY1", rows[0].InvoiceKey)
	assert.Equal(t, "5405", rows[0].Cfop)
	assert.Equal(t, "1405", rows[0].AdjustedCfop)
	assert.Equal(t, "00", rows[0].CstIcms)
	assert.Equal(t, "50", rows[0].AdjustedCstIcms)
	assert.True(t, rows[0].Changed)

	assert.False(t, rows[1].Changed)
	assert.True(t, rows[2].Changed, "CFOP alone changed")
	assert.Equal(t, "11-C", rows[2].ItemID)

	assert.Empty(t, Build(nil))
}

func TestXLSX(t *testing.T) {
	data, err := XLSX(Build(adjustedRecords()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "10-A", rows[1][3])
	assert.Equal(t, "5405", rows[1][6])
	assert.Equal(t, "1405", rows[1][7])
	assert.Equal(t, "Sim", rows[1][13])
	assert.Equal(t, "Não", rows[2][13])

	plain, err := f.GetCellStyle(SheetName, "H3")
	require.NoError(t, err)
	changed, err := f.GetCellStyle(SheetName, "H2")
	require.NoError(t, err)
	assert.NotEqual(t, plain, changed)
}

func TestCSV(t *testing.T) {
	data, err := CSV(Build(adjustedRecords()))
	require.NoError(t, err)

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, header, records[0])
	assert.Equal(t, "AÇÚCAR", records[1][5])
	assert.Equal(t, "25,00", records[1][12])
	assert.Equal(t, "3,50", records[2][12])
	assert.Equal(t, "2108", records[3][7])
}

func TestCSV_ValuesRoundLikeTheLedger(t *testing.T) {
	values := []float64{0.125, 1.005, 2.675, -0.001}
	items := make([]domain.LineItem, len(values))
	for i, v := range values {
		items[i] = domain.LineItem{Code: "X", TotalValue: v}
	}

	data, err := CSV(Build([]domain.InvoiceRecord{{Items: items}}))
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(values)+1)

	assert.Equal(t, "0,13", records[1][12])
	assert.Equal(t, "1,01", records[2][12])
	assert.Equal(t, "2,68", records[3][12])
	assert.Equal(t, "0,00", records[4][12])
	for i, v := range values {
		assert.Equal(t, sped.FormatValue(v), records[i+1][12])
	}
}

func TestSanitizeForCSV(t *testing.T) {
	assert.Equal(t, "ab c", sanitizeForCSV(" a\nb\x01c\t "))
	assert.Equal(t, "", sanitizeForCSV("   "))
}
