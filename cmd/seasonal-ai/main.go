package main

import (
	"os"

	"github.com/SurinSeong/seasonal-ai-backend/internal/api"
	"github.com/SurinSeong/seasonal-ai-backend/internal/cli"
	"github.com/SurinSeong/seasonal-ai-backend/internal/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	askOptions cli.Options
)

func serve(cmd *cobra.Command, args []string) {
	server.Main(configPath)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "seasonal-ai",
		Short: "Chat backend forwarding messages to OpenAI",
		Run:   serve,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the JSON config file (default ~/.config/seasonal-ai.json)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		Run:   serve,
	}

	askCmd := &cobra.Command{
		Use:   "ask [words...]",
		Short: "Send a message to a running server and print the reply",
		Long:  "Send a message to a running server and print the reply. The message is read from stdin when no words are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(askOptions, args, os.Stdin, os.Stdout)
		},
	}
	askCmd.Flags().StringVar(&askOptions.Host, "host", "localhost", "Server host")
	askCmd.Flags().IntVar(&askOptions.Port, "port", 8000, "Server port")
	askCmd.Flags().BoolVar(&askOptions.Assistant, "assistant", false, "Ask the configured assistant instead of the chat model")
	askCmd.Flags().StringVar(&askOptions.Format, "format", "", "Reply format, \""+api.FormatHTML+"\" prints sanitized HTML")

	rootCmd.AddCommand(serveCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
