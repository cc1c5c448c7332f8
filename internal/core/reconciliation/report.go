// internal/core/reconciliation/report.go
package reconciliation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode"

	"sped-service/internal/core/sped"
	"sped-service/internal/domain"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// SheetName is the worksheet holding the comparison in the XLSX export.
const SheetName = "Conciliacao"

var header = []string{
	"Arquivo", "Chave NF-e", "Número NF-e", "Item", "Código", "Descrição",
	"CFOP Original", "CFOP Ajustado", "CST ICMS Original", "CST ICMS Ajustado",
	"CST PIS", "CST COFINS", "Valor Total", "Alterado",
}

// Build flattens the adjusted records into one row per item, in document order.
func Build(records []domain.InvoiceRecord) []domain.ReconciliationRow {
	var rows []domain.ReconciliationRow
	for _, rec := range records {
		for _, item := range rec.Items {
			rows = append(rows, domain.ReconciliationRow{
				Source:          rec.Source,
				InvoiceKey:      rec.Key,
				InvoiceNumber:   rec.Number,
				ItemID:          item.ID,
				Code:            item.Code,
				Description:     item.Description,
				Cfop:            item.Cfop,
				AdjustedCfop:    item.AdjustedCfop,
				CstIcms:         item.CstIcms,
				AdjustedCstIcms: item.AdjustedCstIcms,
				CstPis:          item.CstPis,
				CstCofins:       item.CstCofins,
				TotalValue:      item.TotalValue,
				Changed:         item.Cfop != item.AdjustedCfop || item.CstIcms != item.AdjustedCstIcms,
			})
		}
	}
	return rows
}

func (r row) cells() []string {
	changed := "Não"
	if r.Changed {
		changed = "Sim"
	}
	return []string{
		r.Source, r.InvoiceKey, r.InvoiceNumber, r.ItemID, r.Code, r.Description,
		r.Cfop, r.AdjustedCfop, r.CstIcms, r.AdjustedCstIcms,
		r.CstPis, r.CstCofins, sped.FormatValue(r.TotalValue), changed,
	}
}

type row domain.ReconciliationRow

// XLSX renders the rows as a workbook. Adjusted cells that differ from the
// original are highlighted.
func XLSX(rows []domain.ReconciliationRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	changedStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}

	for i, r := range rows {
		line := i + 2
		cells := row(r).cells()
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		values[12] = r.TotalValue

		start, _ := excelize.CoordinatesToCellName(1, line)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return nil, err
		}
		if r.Cfop != r.AdjustedCfop {
			if err := highlight(f, 8, line, changedStyle); err != nil {
				return nil, err
			}
		}
		if r.CstIcms != r.AdjustedCstIcms {
			if err := highlight(f, 10, line, changedStyle); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("falha ao gerar planilha de conciliação: %w", err)
	}
	return buf.Bytes(), nil
}

func highlight(f *excelize.File, col, line, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, line)
	if err != nil {
		return err
	}
	return f.SetCellStyle(SheetName, cell, cell, style)
}

// CSV renders the rows as a ';' separated file in Windows-1252.
func CSV(rows []domain.ReconciliationRow) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	writer.Comma = ';'

	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		cells := row(r).cells()
		for i := range cells {
			cells[i] = sanitizeForCSV(cells[i])
		}
		if err := writer.Write(cells); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	encoder := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	out, err := encoder.Bytes(buffer.Bytes())
	if err != nil {
		return nil, fmt.Errorf("falha ao codificar CSV de conciliação: %w", err)
	}
	return out, nil
}

// sanitizeForCSV drops embedded line breaks and tabs and turns other control
// characters into spaces.
func sanitizeForCSV(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\r' || r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
