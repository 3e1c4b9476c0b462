package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/service"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about PDF documents",
	Long: `docqa ingests PDF documents into a vector index, one namespace per document,
and answers questions about them with retrieval-augmented generation.

Run without a subcommand to ingest the configured demo PDF and ask the demo question.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDemo,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml, then ~/.config/docqa/config.yaml)")
}

func runDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfgFile, "")
	if err != nil {
		return err
	}
	defer a.close()

	demo := a.cfg.Demo
	res, err := a.pipeline.Ingest(ctx, demo.PDF, demo.Namespace, service.IngestOptions{Overwrite: true})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d chunks into namespace %q\n", res.Chunks, demo.Namespace)

	answer, err := a.pipeline.Answer(ctx, demo.Question, demo.Namespace, a.cfg.Query.TopK)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Q: %s\nA: %s\n", demo.Question, answer)
	return nil
}
