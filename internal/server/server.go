package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/cortexbi/internal/config"
)

type Server struct {
	cfg  *config.Config
	http *http.Server
	app  *App
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setup services: %w", err)
	}

	s := &Server{cfg: cfg, app: app}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      newRouter(cfg, app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(config.DefaultAgentTimeout+60) * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then drains requests and closes the
// warehouse connection.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)

		if closeErr := s.app.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("backend", s.cfg.Backend).Msg("error closing backend")
		} else {
			log.Info().Str("backend", s.cfg.Backend).Msg("backend closed")
		}
		return err
	case err := <-errCh:
		s.app.Close()
		return err
	}
}
