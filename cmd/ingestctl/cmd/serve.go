package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docflow/ingest-console/internal/api"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console API",
	Long: `Runs the console HTTP API. A stored credential is restored at start; the
console then serves the guarded screens, live status sockets, /metrics and
/swagger until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := restoredApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		e := api.NewRouter(api.Deps{
			Session: a.session,
			Guard:   a.guard,
			Remote:  a.remote,
			Engine:  a.engine,
			Boards:  a.boards,
			Checks:  a.checks,
			Log:     log,
		})

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("port", cfg.Port).Str("backend", cfg.Remote.BaseURL).Msg("console listening")
			errCh <- e.Start(":" + cfg.Port)
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	},
}
