package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CuriosityQuantified/tandemai/internal/config"
	"github.com/CuriosityQuantified/tandemai/internal/logging"
	"github.com/CuriosityQuantified/tandemai/internal/server"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the headless TandemAI API server",
	Long: `Start TandemAI as a headless server that exposes an HTTP API for
running and inspecting supervisor/worker research sessions.`,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return exitErrorf(2, "resolve working directory: %w", err)
	}

	logging.Info().Str("version", Version).Msg("Starting TandemAI server")
	logging.Info().Str("directory", workDir).Msg("Working directory")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return exitErrorf(2, "ensure paths: %w", err)
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return exitErrorf(2, "load config: %w", err)
	}

	store := storage.New(paths.StoragePath())

	ctx := context.Background()

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort
	serverConfig.Directory = workDir

	srv, err := server.New(ctx, serverConfig, appConfig, store)
	if err != nil {
		return exitErrorf(2, "build server: %w", err)
	}

	if err := srv.InitializeMCP(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to initialize some MCP servers")
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("hostname", serveHostname).
			Int("port", servePort).
			Msg("Server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return exitErrorf(3, "server error: %w", err)
	case <-sigCh:
		logging.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exitErrorf(3, "shutdown: %w", err)
		}
	}
	return nil
}
