package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  AGPL-3.0-only

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey  ApiSecret
// @in                          header
// @name                        X-API-Secret

const (
	AppName    = "Walletcore"
	AppVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "walletcore",
	Short: "Fee estimation and broadcast planning for wallet account operations",
	PersistentPreRun: func(*cobra.Command, []string) {
		loadEnv()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the current version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("%s %s\n", AppName, AppVersion)
	},
}

// loadEnv loads the .env file if it exists (optional in production)
func loadEnv() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Overload(".env"); err != nil {
			log.Fatalf("Error loading .env file: %v", err)
		}
	}
}

func main() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(planCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
