package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the Face Attendance web server.
The server exposes the enrollment and recognition API used by the
registration UI and the attendance kiosk, plus user and attendance
management endpoints for administrators.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (overrides WEB_SESSION_SECRET)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		backend.cfg.Web.Port = port
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		backend.cfg.Web.SessionSecret = secret
	}

	fmt.Printf("Recognition index loaded with %d encodings\n", backend.service.Engine().Index().Len())

	server := web.NewServer(backend.cfg, backend.service, backend.store, backend.logger)

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

	fmt.Printf("Starting Face Attendance on http://0.0.0.0:%d\n", backend.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
