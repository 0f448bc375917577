package main

import (
	"github.com/spf13/cobra"

	"github.com/pagecast/pagecast/internal/api"
	"github.com/pagecast/pagecast/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pagecast",
	Short: "Convert print-oriented PDFs into accessible fixed-layout EPUBs",
	Long: `Pagecast converts print-oriented PDF documents into accessible
fixed-layout EPUB 3 publications with a synchronized text layer.

The pipeline includes:
  - Text extraction with OCR fallback for scanned pages
  - Reading-order and layout analysis (including two-page spreads)
  - Semantic block classification (headings, lists, captions, glossaries)
  - EPUB 3 packaging with navigation and media-overlay support`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pagecast/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pagecast home directory (default: ~/.pagecast)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
