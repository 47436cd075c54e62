package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cdnbox/pkg/config"
	"cdnbox/pkg/server"
	"cdnbox/pkg/telemetry"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the file storage server",
	Long: `Start the HTTP server that lists, serves, and accepts uploads into
the configured storage root.`,
	RunE: runServer,
}

func init() {
	viper.AutomaticEnv()
	// Replace . with _ in env var names (e.g., server.port becomes SERVER_PORT)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serverCmd.Flags().String("base-url", "", "Public base URL used in upload responses")
	serverCmd.Flags().String("storage-root", "data", "Directory tree to serve and store uploads in")
	serverCmd.Flags().Int64("max-upload-mb", 100, "Maximum upload size in megabytes")
	serverCmd.Flags().String("admin-username", "", "Admin username")
	serverCmd.Flags().String("admin-password", "", "Admin password")
	serverCmd.Flags().String("session-secret", "", "Key for the session cookie store")
	serverCmd.Flags().String("turnstile-secret", "", "Bot challenge secret (empty disables the challenge)")
	serverCmd.Flags().String("turnstile-site-key", "", "Bot challenge site key embedded in the login form")
	serverCmd.Flags().Int("upload-rate-limit", 50, "Uploads allowed per client per window")
	serverCmd.Flags().Duration("upload-rate-window", time.Hour, "Upload rate limit window")
	serverCmd.Flags().Bool("enable-telemetry", false, "Enable OpenTelemetry tracing")
	serverCmd.Flags().String("otel-endpoint", "", "OpenTelemetry endpoint (if empty, uses auto-export)")

	_ = viper.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.base_url", serverCmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("storage.root", serverCmd.Flags().Lookup("storage-root"))
	_ = viper.BindPFlag("storage.max_upload_mb", serverCmd.Flags().Lookup("max-upload-mb"))
	_ = viper.BindPFlag("auth.username", serverCmd.Flags().Lookup("admin-username"))
	_ = viper.BindPFlag("auth.password", serverCmd.Flags().Lookup("admin-password"))
	_ = viper.BindPFlag("auth.session_secret", serverCmd.Flags().Lookup("session-secret"))
	_ = viper.BindPFlag("auth.turnstile_secret", serverCmd.Flags().Lookup("turnstile-secret"))
	_ = viper.BindPFlag("auth.turnstile_site_key", serverCmd.Flags().Lookup("turnstile-site-key"))
	_ = viper.BindPFlag("upload.rate_limit", serverCmd.Flags().Lookup("upload-rate-limit"))
	_ = viper.BindPFlag("upload.rate_window", serverCmd.Flags().Lookup("upload-rate-window"))
	_ = viper.BindPFlag("telemetry.enabled", serverCmd.Flags().Lookup("enable-telemetry"))
	_ = viper.BindPFlag("telemetry.endpoint", serverCmd.Flags().Lookup("otel-endpoint"))
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := GetLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
		return fmt.Errorf("admin credentials are required (ADMIN_USERNAME / ADMIN_PASSWORD)")
	}

	var cleanup func()
	if cfg.Telemetry.Enabled {
		logger.Info("Initializing OpenTelemetry")
		cleanup, err = telemetry.Initialize(cfg.Telemetry, logger)
		if err != nil {
			logger.Warnf("Failed to initialize telemetry: %v", err)
		} else {
			defer cleanup()
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %d", cfg.Server.Port)
		serverErrors <- srv.Start()
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-interrupt:
		logger.Infof("Received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
			return err
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
