// cmd/spedgen/root.go
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// errMismatch is returned by verify when any count record disagrees.
var errMismatch = errors.New("contagens divergentes")

func newRootCmd() *cobra.Command {
	var verbose bool
	var logger *zap.Logger

	root := &cobra.Command{
		Use:           "spedgen",
		Short:         "Gera arquivos SPED EFD a partir de NF-e XML",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				logger = zap.NewNop()
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "exibe logs de processamento")

	loggerFn := func() *zap.Logger {
		if logger == nil {
			return zap.NewNop()
		}
		return logger
	}

	root.AddCommand(newGenerateCmd(loggerFn), newVerifyCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Mostra a versão",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "spedgen "+version)
		},
	}
}
