// cmd/spedgen/verify.go
package main

import (
	"errors"
	"fmt"
	"os"

	"sped-service/internal/core/sped"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <arquivo SPED>",
		Short: "Confere as contagens de registros de um arquivo SPED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := sped.Verify(f)
			if err != nil && !errors.Is(err, sped.ErrCountMismatch) {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "linhas: %d  documentos: %d\n", report.TotalLines, len(report.Documents))
			for _, c := range report.Checks {
				status := "ok"
				if !c.OK {
					status = "DIVERGENTE"
				}
				fmt.Fprintf(out, "%-10s declarado=%-6d contado=%-6d %s\n", c.Register, c.Declared, c.Actual, status)
			}
			if !report.Valid {
				return errMismatch
			}
			return nil
		},
	}
}
