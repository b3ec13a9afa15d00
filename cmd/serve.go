package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/uniportal/internal/config"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/database/postgres"
	"github.com/kozaktomas/uniportal/internal/web"
	"github.com/kozaktomas/uniportal/internal/web/middleware"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the uniportal API server.

Password login, face login and face enrollment are served under /api/v1.
Face authentication is disabled when EMBEDDING_URL is unset or the embedding
server does not answer at startup.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (overrides WEB_SESSION_SECRET)")
}

// applyServeFlags lets command line flags override the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Session.Secret = secret
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Session.Secret == "" {
		fmt.Println("Warning: WEB_SESSION_SECRET not set, using the development secret")
	}
	sessionManager := middleware.NewSessionManager(cfg.Session.Secret, postgres.NewSessionRepository(pool))
	sessionManager.SetDuration(cfg.Session.TTL)
	fmt.Printf("Session persistence enabled (PostgreSQL), tokens expire after %s\n", cfg.Session.TTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	faces, err := newFaceService(ctx, cfg, sessionManager)
	if err != nil {
		return err
	}
	users, err := database.GetUserReader(ctx)
	if err != nil {
		return err
	}
	encodings, err := database.GetEncodingReader(ctx)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, faces, users, encodings, sessionManager)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting uniportal API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
