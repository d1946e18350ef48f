package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"jobboard-workers/internal/common/config"
	"jobboard-workers/internal/common/logger"
)

type Server struct {
	srv    *http.Server
	logger logger.Logger
}

// NewServer builds the HTTP server. baseCtx becomes the parent of every
// request context.
func NewServer(baseCtx context.Context, cfg config.HTTPConfig, d Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    cfg.Address,
			Handler: NewHandler(d),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
			WriteTimeout: config.GetDuration(cfg.WriteTimeout),
			IdleTimeout:  120 * time.Second,
		},
		logger: logger.Component(d.Logger, "api.server"),
	}
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{"addr": s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)
	return s.srv.Shutdown(ctx)
}
