package main

import (
	"embed"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	_ = godotenv.Load()

	var (
		configPath  string
		sessionID   string
		interviewID string
	)

	root := &cobra.Command{
		Use:          "mockingbird",
		Short:        "Run an AI mock-interview session from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, sessionID, interviewID)
		},
	}

	root.Flags().StringVar(&configPath, "config", "config.yaml", "path to the config file")
	root.Flags().StringVar(&sessionID, "session", "", "session identifier (a fresh id is generated when empty)")
	root.Flags().StringVar(&interviewID, "interview", "", "interview identifier to run")

	if err := root.Execute(); err != nil {
		log.Printf("mockingbird: %v", err)
		os.Exit(1)
	}
}
