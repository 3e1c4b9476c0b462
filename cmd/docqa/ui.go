package main

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/tui"
)

var uiLogFile string

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Start the interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		// the UI owns the terminal, so logs always go to a file
		a, err := newApp(ctx, cfgFile, uiLogFile)
		if err != nil {
			return err
		}
		defer a.close()

		a.log.Info("starting ui", "index", a.cfg.VectorStore.Index)
		m := tui.New(ctx, a.pipeline, a.cfg.Query.TopK)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	},
}

func init() {
	uiCmd.Flags().StringVar(&uiLogFile, "log-file", filepath.Join(os.TempDir(), "docqa.log"), "log destination while the UI runs")
	rootCmd.AddCommand(uiCmd)
}
