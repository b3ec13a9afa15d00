package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uniportal",
	Short: "University portal backend with face authentication",
	Long: `uniportal serves the university portal API. Students and staff sign in
with a password or with a photo of their face, which is compared against the
face encodings they enrolled earlier.

Face descriptors are computed by an external embedding server (EMBEDDING_URL);
encodings and accounts are stored in PostgreSQL (DATABASE_URL).`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
