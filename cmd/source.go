package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/geeth24/xpool-agent/pkg/prompt"
)

var (
	sourceRole       string
	sourceLocation   string
	sourceSkills     []string
	sourceJobID      string
	sourceExperience string
	sourceMax        int
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Start a candidate sourcing run from structured criteria",
	Long: `Build a sourcing request from flags instead of free text. The compiled
request is shown exactly as it will appear in the conversation; the resource
bound travels to the backend as a directive suffix.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		max := sourceMax
		if max <= 0 {
			max = app.cfg.Prompt.DefaultMaxResults
		}

		compiled := prompt.Compile(prompt.Selection{
			Role:       sourceRole,
			Location:   sourceLocation,
			Skills:     sourceSkills,
			JobID:      sourceJobID,
			Experience: sourceExperience,
			MaxResults: max,
		})

		return app.RunTurn(context.Background(), compiled.Display, compiled.Wire)
	},
}

func init() {
	sourceCmd.Flags().StringVar(&sourceRole, "role", "", "role to source for (e.g. \"iOS Developer\")")
	sourceCmd.Flags().StringVar(&sourceLocation, "location", "", "candidate location")
	sourceCmd.Flags().StringSliceVar(&sourceSkills, "skills", nil, "required skills (comma separated)")
	sourceCmd.Flags().StringVar(&sourceJobID, "job", "", "existing job to add candidates to")
	sourceCmd.Flags().StringVar(&sourceExperience, "experience", "", "experience requirement (e.g. \"5+ years\")")
	sourceCmd.Flags().IntVar(&sourceMax, "max", 0, "maximum candidates to source (default from config)")

	rootCmd.AddCommand(sourceCmd)
}
