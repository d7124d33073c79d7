package cmd

import (
	"os"

	"github.com/mezonai/textchain/logx"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "textchain",
	Short: "Text ledger node CLI",
	Long:  "Command line interface for running a peer-to-peer text ledger node on the local network.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
