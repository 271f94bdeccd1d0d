package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buildbank/logger"
)

var rootCmd = &cobra.Command{
	Use:   "buildbank",
	Short: "buildbank keeps building material prices up to date from vendor product pages.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init()
	},
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
