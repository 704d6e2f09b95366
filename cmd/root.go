package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "xpool-agent",
	Short: "Conversational sourcing assistant for xPool",
	Long: `xpool-agent drives the xPool recruiting assistant from the terminal:
it streams assistant replies, shows tool activity as it happens, and tracks
background sourcing tasks to completion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		promptText := viper.GetString("prompt")
		if promptText == "" {
			return cmd.Help()
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		return app.RunTurn(context.Background(), promptText, promptText)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .xpool/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("server", "", "xPool backend URL")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().Bool("continue", false, "continue from the saved session instead of starting fresh")
	viper.BindPFlag("continue", rootCmd.PersistentFlags().Lookup("continue"))

	rootCmd.PersistentFlags().Bool("no-wait", false, "exit after the assistant turn without waiting for background tasks")
	viper.BindPFlag("no_wait", rootCmd.PersistentFlags().Lookup("no-wait"))

	rootCmd.Flags().StringP("prompt", "p", "", "send a single prompt and stream the reply")
	viper.BindPFlag("prompt", rootCmd.Flags().Lookup("prompt"))
}
