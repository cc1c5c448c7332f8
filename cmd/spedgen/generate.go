// cmd/spedgen/generate.go
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sped-service/internal/core/pipeline"
	"sped-service/internal/core/reconciliation"
	"sped-service/internal/core/sped"
	"sped-service/internal/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type generateOptions struct {
	configFile  string
	params      domain.RunParams
	out         string
	report      string
	concurrency int
}

func newGenerateCmd(logger func() *zap.Logger) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [arquivos XML...]",
		Short: "Converte notas NF-e em um arquivo SPED",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			cfg, err := params.RunConfig()
			if err != nil {
				return err
			}
			return runGenerate(cmd, logger(), cfg, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "arquivo YAML com os parâmetros da execução")
	f.StringVar(&opts.params.CNPJ, "cnpj", "", "CNPJ do contribuinte")
	f.StringVar(&opts.params.Period, "period", "", "período de referência (AAAA-MM)")
	f.StringVar(&opts.params.Profile, "profile", "A", "perfil (A, B ou C)")
	f.StringVar(&opts.params.SpedType, "type", string(domain.ReportICMSIPI), "tipo de SPED (ICMS_IPI ou CONTRIBUICOES)")
	f.StringVarP(&opts.out, "out", "o", "", "arquivo SPED de saída (padrão SPED_<cnpj>_<MMAAAA>.txt)")
	f.StringVar(&opts.report, "report", "", "relatório de conciliação (.xlsx ou .csv)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "leituras de arquivo em paralelo")
	return cmd
}

// resolve merges the YAML run file with the flags. Flags set explicitly on the
// command line win over the file.
func (o *generateOptions) resolve(cmd *cobra.Command) (domain.RunParams, error) {
	if o.configFile == "" {
		return o.params, nil
	}
	params, err := loadRunFile(o.configFile)
	if err != nil {
		return domain.RunParams{}, err
	}

	override := func(name string, dst *string, val string) {
		if cmd.Flags().Changed(name) || *dst == "" {
			*dst = val
		}
	}
	override("cnpj", &params.CNPJ, o.params.CNPJ)
	override("period", &params.Period, o.params.Period)
	override("profile", &params.Profile, o.params.Profile)
	override("type", &params.SpedType, o.params.SpedType)
	return params, nil
}

func loadRunFile(path string) (domain.RunParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RunParams{}, fmt.Errorf("erro ao ler %s: %w", path, err)
	}
	var params domain.RunParams
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return domain.RunParams{}, fmt.Errorf("erro ao interpretar %s: %w", path, err)
	}
	return params, nil
}

func runGenerate(cmd *cobra.Command, logger *zap.Logger, cfg domain.RunConfig, paths []string, opts *generateOptions) error {
	files := make([]domain.RawFile, len(paths))
	for i, p := range paths {
		files[i] = localFile(p)
	}

	result, err := pipeline.NewService(logger, opts.concurrency).ProcessAndGenerate(cmd.Context(), files, cfg)
	if err != nil {
		return err
	}

	data, err := sped.EncodeLatin1(result.Text)
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = fmt.Sprintf("SPED_%s_%02d%04d.txt", domain.OnlyDigits(cfg.TaxID), int(cfg.Period.Month), cfg.Period.Year)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("erro ao gravar %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s gerado com %d nota(s)\n", out, len(result.Records))

	if opts.report == "" {
		return nil
	}
	rows := reconciliation.Build(result.Records)
	var report []byte
	switch strings.ToLower(filepath.Ext(opts.report)) {
	case ".csv":
		report, err = reconciliation.CSV(rows)
	case ".xlsx":
		report, err = reconciliation.XLSX(rows)
	default:
		return fmt.Errorf("extensão de relatório não suportada: %s", opts.report)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.report, report, 0o644); err != nil {
		return fmt.Errorf("erro ao gravar %s: %w", opts.report, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s gerado com %d item(ns)\n", opts.report, len(rows))
	return nil
}

func localFile(path string) domain.RawFile {
	return domain.RawFile{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}
