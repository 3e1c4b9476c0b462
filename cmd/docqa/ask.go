package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/vectorstore"
)

var askFlags struct {
	namespace string
	topK      int
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from one namespace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfgFile, "")
		if err != nil {
			return err
		}
		defer a.close()

		topK := askFlags.topK
		if topK <= 0 {
			topK = a.cfg.Query.TopK
		}
		answer, err := a.pipeline.Answer(ctx, strings.Join(args, " "), askFlags.namespace, topK)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askFlags.namespace, "namespace", "n", vectorstore.DefaultNamespace, "namespace to search")
	askCmd.Flags().IntVarP(&askFlags.topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	rootCmd.AddCommand(askCmd)
}
