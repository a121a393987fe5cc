package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/goban/core/cmd/api/commands"
)

// @title Goban API
// @version 1.0
// @description Comment monitoring and reporting console

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.basic BasicAuth

func main() {
	rootCmd := &cobra.Command{
		Use:   "goban-api",
		Short: "Goban API Server",
		Long:  `Goban watches an uploader's latest videos and reports comments that match configured keywords, using logged-in platform accounts.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewHashPasswordCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
