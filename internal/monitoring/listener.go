package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
)

// Listener serves /metrics and /healthz while the engine runs.
type Listener struct {
	srv *http.Server
}

// NewListener builds the HTTP listener over the given registry.
func NewListener(cfg config.MetricsConfig, gatherer prometheus.Gatherer) *Listener {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n")) //nolint:errcheck
	})

	return &Listener{
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Serve blocks until ctx is cancelled, then shuts down gracefully.
func (l *Listener) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("monitoring: listener starting", zap.String("addr", l.srv.Addr))
		errCh <- l.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "monitoring: shutdown")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "monitoring: listener")
	}
}
