// internal/core/fiscal/adjust.go
package fiscal

import "sped-service/internal/domain"

// cfopEntryDigit maps the leading digit of the supplier's exit CFOP to the
// buyer's entry CFOP: 5xxx (intrastate exit) -> 1xxx, 6xxx (interstate exit) -> 2xxx.
var cfopEntryDigit = map[byte]byte{
	'5': '1',
	'6': '2',
}

// cstCredit lists the ICMS situation codes rewritten on entry.
var cstCredit = map[string]string{
	"00": "50",
	"20": "50",
}

// AdjustCFOP returns the entry CFOP for an exit CFOP. Any other CFOP,
// including the empty string, is returned unchanged.
func AdjustCFOP(cfop string) string {
	if cfop == "" {
		return cfop
	}
	if digit, ok := cfopEntryDigit[cfop[0]]; ok {
		return string(digit) + cfop[1:]
	}
	return cfop
}

// AdjustCSTICMS returns the ICMS situation code used on entry.
func AdjustCSTICMS(cst string) string {
	if adjusted, ok := cstCredit[cst]; ok {
		return adjusted
	}
	return cst
}

// Adjust returns a copy of record with the adjusted CFOP and CST ICMS filled
// in on every item. The input record and its item slice are left untouched.
// PIS and COFINS codes are carried over as they are.
func Adjust(record domain.InvoiceRecord) domain.InvoiceRecord {
	items := make([]domain.LineItem, len(record.Items))
	for i, item := range record.Items {
		item.AdjustedCfop = AdjustCFOP(item.Cfop)
		item.AdjustedCstIcms = AdjustCSTICMS(item.CstIcms)
		items[i] = item
	}
	record.Items = items
	return record
}
