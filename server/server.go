// Package server exposes the decompressor over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ripgzip/config"
	"github.com/dselans/ripgzip/decompress"
)

const ShutdownTimeout = 5 * time.Second

type Server struct {
	cfg          *config.TOMLServer
	log          *logrus.Entry
	router       *mux.Router
	decompressor *decompress.Decompressor
}

func New(cfg *config.Config) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	s := &Server{
		cfg: cfg.TOML.Server,
		log: logrus.WithField("pkg", "server"),
		decompressor: decompress.New(&decompress.Options{
			BufferSize: cfg.TOML.Config.BufferSize,
			Logger:     logrus.WithField("pkg", "decompress"),
		}),
	}

	s.router = mux.NewRouter()
	s.router.Use(s.logRequest)
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/decompress", s.decompressHandler).Methods(http.MethodPost)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	llog := s.log.WithFields(logrus.Fields{
		"method": "Run",
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	srv := &http.Server{
		Addr:        s.cfg.ListenAddress,
		Handler:     s.router,
		ReadTimeout: time.Duration(s.cfg.ReadTimeout),
	}

	errCh := make(chan error, 1)

	go func() {
		llog.Infof("listening on '%s'", s.cfg.ListenAddress)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "unable to serve")
		}

		return nil
	case <-ctx.Done():
		llog.Debug("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "unable to shut down server")
	}

	return nil
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start),
		}).Debug("handled request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
