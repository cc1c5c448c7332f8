// internal/domain/models.go
package domain

import (
	"io"
	"time"
)

// Profile is the EFD regulatory profile declared in the 0000 record.
type Profile string

// Constants for the closed set of profiles.
const (
	ProfileA Profile = "A"
	ProfileB Profile = "B"
	ProfileC Profile = "C"
)

// ReportType identifies which EFD bookkeeping is being generated.
type ReportType string

// Constants for the supported report types.
const (
	ReportICMSIPI       ReportType = "ICMS_IPI"
	ReportContribuicoes ReportType = "CONTRIBUICOES"
)

// Label returns the human-readable name of the report type.
func (t ReportType) Label() string {
	switch t {
	case ReportContribuicoes:
		return "EFD Contribuições"
	default:
		return "EFD ICMS/IPI"
	}
}

// LayoutCode returns the layout version written in the 0000 record.
func (t ReportType) LayoutCode() string {
	switch t {
	case ReportContribuicoes:
		return "006"
	default:
		return "017"
	}
}

// LineItem is one <det> of an NF-e.
type LineItem struct {
	ID              string  `json:"id"`
	Code            string  `json:"code"`
	Description     string  `json:"description"`
	NCM             string  `json:"ncm"`
	Cfop            string  `json:"cfop"`
	CstIcms         string  `json:"cst_icms"`
	CstPis          string  `json:"cst_pis"`
	CstCofins       string  `json:"cst_cofins"`
	Unit            string  `json:"unit"`
	Quantity        float64 `json:"quantity"`
	UnitValue       float64 `json:"unit_value"`
	TotalValue      float64 `json:"total_value"`
	BcIcms          float64 `json:"bc_icms"`
	IcmsValue       float64 `json:"icms_value"`
	AliqIcms        float64 `json:"aliq_icms"`
	AdjustedCfop    string  `json:"adjusted_cfop"`
	AdjustedCstIcms string  `json:"adjusted_cst_icms"`
}

// InvoiceRecord is one parsed NF-e document.
type InvoiceRecord struct {
	Key           string     `json:"key"`
	Number        string     `json:"number"`
	Date          string     `json:"date"`
	TotalValue    float64    `json:"total_value"`
	EmitterCnpj   string     `json:"emitter_cnpj"`
	RecipientCnpj string     `json:"recipient_cnpj"`
	Items         []LineItem `json:"items"`
	Source        string     `json:"source,omitempty"`
}

// Period is the reference month of the bookkeeping.
type Period struct {
	Year  int        `json:"year" validate:"gte=1900,lte=9999"`
	Month time.Month `json:"month" validate:"gte=1,lte=12"`
}

// LastDay returns the last calendar day of the period's month.
func (p Period) LastDay() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Company carries the declarant data of the 0000 and 0150 records.
// Empty fields are written as the layout placeholders.
type Company struct {
	Name         string `json:"name" yaml:"name" form:"companyName"`
	UF           string `json:"uf" yaml:"uf" form:"companyUf"`
	IE           string `json:"ie" yaml:"ie" form:"companyIe"`
	Municipality string `json:"municipality" yaml:"municipality" form:"companyMunicipality"`
	IM           string `json:"im" yaml:"im" form:"companyIm"`
	Street       string `json:"street" yaml:"street" form:"companyStreet"`
	Number       string `json:"number" yaml:"number" form:"companyNumber"`
	Complement   string `json:"complement" yaml:"complement" form:"companyComplement"`
	District     string `json:"district" yaml:"district" form:"companyDistrict"`
}

// RunConfig holds the parameters of one generation run.
type RunConfig struct {
	TaxID      string     `json:"cnpj" validate:"required,cnpj"`
	Period     Period     `json:"period"`
	Profile    Profile    `json:"profile" validate:"required,oneof=A B C"`
	ReportType ReportType `json:"sped_type" validate:"required,oneof=ICMS_IPI CONTRIBUICOES"`
	Company    Company    `json:"company"`
}

// RawFile is one input document waiting to be read.
type RawFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// ProcessResult is what the pipeline hands back to its callers.
type ProcessResult struct {
	RunID   string          `json:"run_id"`
	Records []InvoiceRecord `json:"records"`
	Text    string          `json:"sped_file"`
}

// ReconciliationRow is one line of the original vs adjusted comparison.
type ReconciliationRow struct {
	Source          string  `json:"source"`
	InvoiceKey      string  `json:"invoice_key"`
	InvoiceNumber   string  `json:"invoice_number"`
	ItemID          string  `json:"item_id"`
	Code            string  `json:"code"`
	Description     string  `json:"description"`
	Cfop            string  `json:"cfop"`
	AdjustedCfop    string  `json:"adjusted_cfop"`
	CstIcms         string  `json:"cst_icms"`
	AdjustedCstIcms string  `json:"adjusted_cst_icms"`
	CstPis          string  `json:"cst_pis"`
	CstCofins       string  `json:"cst_cofins"`
	TotalValue      float64 `json:"total_value"`
	Changed         bool    `json:"changed"`
}
