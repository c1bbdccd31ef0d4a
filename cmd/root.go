// Package cmd implements the docspasta command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/docspasta/cmd/crawl"
	"github.com/jonesrussell/docspasta/cmd/jobs"
	"github.com/jonesrussell/docspasta/cmd/serve"
	"github.com/jonesrussell/docspasta/internal/config"
)

// Version is the release version reported by the version command and /health.
const Version = "1.0.0"

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "docspasta",
		Short: "Crawl documentation sites into a single Markdown document",
		Long: `docspasta crawls a documentation site from a seed URL, converts each
page to Markdown, and assembles the best pages into one document.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute parses flags, initializes configuration, and runs the CLI.
func Execute() error {
	// Flags are parsed early so --config and --debug shape config loading.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := config.Init(cfgFile); err != nil {
		return fmt.Errorf("initialize configuration: %w", err)
	}

	if debug {
		viper.Set("logger.level", "debug")
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("docspasta version %s\n", Version)
		},
	})

	rootCmd.AddCommand(serve.Command(Version))
	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(jobs.Command())
}
