package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geeth24/xpool-agent/pkg/chat"
	"github.com/geeth24/xpool-agent/pkg/config"
	"github.com/geeth24/xpool-agent/pkg/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the saved session transcript",
	Long: `Write the saved session history to a file in json, jsonl, yaml or
markdown format. Use "-" as the output to write to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		history, err := chat.NewHistory(cfg.History.File)
		if err != nil {
			return err
		}

		messages := history.GetMessages()
		if len(messages) == 0 {
			return fmt.Errorf("no saved session found at %s", cfg.History.File)
		}

		transcript := export.NewTranscript(messages, nil)

		if exportOutput == "-" {
			return exporter.Export(transcript, os.Stdout)
		}

		path := exportOutput
		if path == "" {
			path = "transcript." + exporter.Extension()
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := exporter.Export(transcript, f); err != nil {
			return err
		}

		fmt.Printf("exported %d message(s) to %s\n", len(messages), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format (json, jsonl, yaml, md)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (default transcript.<ext>, \"-\" for stdout)")

	rootCmd.AddCommand(exportCmd)
}
