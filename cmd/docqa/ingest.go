package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/errs"
	"docqa/internal/service"
)

var ingestFlags struct {
	namespace string
	overwrite bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf]",
	Short: "Extract, chunk, embed and store a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return errs.Errorf(errs.Extraction, "ingest", "only .pdf files are supported: %s", path)
		}
		ns := ingestFlags.namespace
		if ns == "" {
			ns = service.NamespaceFromFilename(path)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfgFile, "")
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.pipeline.Ingest(ctx, path, ns, service.IngestOptions{Overwrite: ingestFlags.overwrite})
		if err != nil {
			if errs.Is(err, errs.Conflict) {
				return fmt.Errorf("%w (use --overwrite to replace it)", err)
			}
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed %d chunks into namespace %q\n", res.Chunks, ns)
		if res.Summary != "" {
			fmt.Fprintf(out, "Summary: %s\n", res.Summary)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFlags.namespace, "namespace", "n", "", "target namespace (default derived from the file name)")
	ingestCmd.Flags().BoolVar(&ingestFlags.overwrite, "overwrite", false, "replace the namespace if it already holds records")
	rootCmd.AddCommand(ingestCmd)
}
