// internal/domain/runconfig.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		return len(OnlyDigits(fl.Field().String())) == 14
	})
	return v
}

// OnlyDigits strips every non-digit character from s.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParsePeriod parses a YYYY-MM reference period.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("período de referência inválido %q: use o formato AAAA-MM", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// ParseProfile accepts the profile letter in any case.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case ProfileA, ProfileB, ProfileC:
		return p, nil
	}
	return "", fmt.Errorf("perfil inválido %q: use A, B ou C", s)
}

// ParseReportType accepts either the code (ICMS_IPI) or the label (EFD ICMS/IPI).
func ParseReportType(s string) (ReportType, error) {
	v := strings.TrimSpace(s)
	for _, t := range []ReportType{ReportICMSIPI, ReportContribuicoes} {
		if strings.EqualFold(v, string(t)) || strings.EqualFold(v, t.Label()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("tipo de SPED inválido %q", s)
}

// Validate checks the run parameters before they reach the pipeline.
func (c RunConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.StructNamespace() {
	case "RunConfig.TaxID":
		return "CNPJ do contribuinte deve conter 14 dígitos"
	case "RunConfig.Period.Year", "RunConfig.Period.Month":
		return "período de referência inválido"
	case "RunConfig.Profile":
		return "perfil deve ser A, B ou C"
	case "RunConfig.ReportType":
		return "tipo de SPED não suportado"
	}
	return fmt.Sprintf("campo %s inválido (%s)", fe.Field(), fe.Tag())
}

// RunParams are the run parameters as received from a form or a YAML file,
// before parsing.
type RunParams struct {
	CNPJ     string  `form:"cnpj" yaml:"cnpj"`
	Period   string  `form:"period" yaml:"period"`
	Profile  string  `form:"profile" yaml:"profile"`
	SpedType string  `form:"spedType" yaml:"sped_type"`
	Company  Company `yaml:"company"`
}

// RunConfig parses and validates the parameters. Every parse failure is
// reported, not only the first.
func (p RunParams) RunConfig() (RunConfig, error) {
	cfg := RunConfig{TaxID: strings.TrimSpace(p.CNPJ), Company: p.Company}

	var errs []error
	var err error
	if cfg.Period, err = ParsePeriod(p.Period); err != nil {
		errs = append(errs, err)
	}
	if cfg.Profile, err = ParseProfile(p.Profile); err != nil {
		errs = append(errs, err)
	}
	if cfg.ReportType, err = ParseReportType(p.SpedType); err != nil {
		errs = append(errs, err)
	}
	if len(OnlyDigits(cfg.TaxID)) != 14 {
		errs = append(errs, errors.New("CNPJ do contribuinte deve conter 14 dígitos"))
	}
	if len(errs) > 0 {
		return RunConfig{}, errors.Join(errs...)
	}
	return cfg, cfg.Validate()
}
