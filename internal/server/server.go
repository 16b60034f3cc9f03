// Package server serves the handler's router over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"shopping-assistant/handler"
	"shopping-assistant/internal/observability"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	echo *echo.Echo
	addr string
}

type Options struct {
	Addr    string
	Metrics http.Handler
}

func New(h *handler.Handler, opts Options) (*Server, error) {
	if h == nil {
		return nil, errors.New("server: handler must not be nil")
	}
	e := h.Echo()
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}
	return &Server{echo: e, addr: opts.Addr}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		observability.Logger().Info("http server listening", "addr", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
