package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wall_go/internal/api"
	"wall_go/internal/app"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить ботов, планировщик публикаций и операторский API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	opts, err := app.Adapters(e.cfg, e.db, e.log)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(); err != nil {
		return err
	}

	c := e.cfg.Current()
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              c.HTTP.Addr,
		Handler:           api.NewRouter(api.NewHandler(a, e.log), c.HTTP.APIToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		e.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			if cfg, err := e.cfg.Reload(); err != nil {
				e.log.Warn("config reload failed, keeping previous snapshot", zap.Error(err))
			} else {
				e.log.Info("config reloaded", zap.Int("groups", len(cfg.Groups)))
			}
		case <-ctx.Done():
			e.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
