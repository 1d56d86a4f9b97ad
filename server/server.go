package server

import (
	"context"
	"errors"
	"github.com/go-http-utils/etag"
	"github.com/sardine-ai/go-installer-config/configs"
	"github.com/sardine-ai/go-installer-config/history"
	"github.com/sardine-ai/go-installer-config/mirror"
	"github.com/sardine-ai/go-installer-config/model"
	"github.com/sirupsen/logrus"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a configs.Store over HTTP to the installer UI.
type Server struct {
	Store   *configs.Store
	History *history.Recorder // optional
	Mirror  mirror.Sink       // optional

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer returns a Server on store. History and Mirror may be set on the
// returned value before Start.
func NewServer(store *configs.Store) *Server {
	return &Server{Store: store}
}

// Start serves on addr until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logrus.WithError(err).Error("error starting server")
		return err
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	handler := etag.Handler(s.CreateHandlers(), false)

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	logrus.WithField("addr", listener.Addr().String()).Info("Starting server")
	err := httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logrus.Info("Stopping server")
	return httpServer.Shutdown(ctx)
}

// CreateHandlers returns the routes of the installer API.
func (s *Server) CreateHandlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/config/files", s.handleFiles)
	mux.HandleFunc("/config/chains", s.handleChains)
	mux.HandleFunc("/config/history", s.handleHistory)
	mux.HandleFunc("/config/restore", s.handleRestore)
	return mux
}

// save writes doc and then records and mirrors it. Only the write itself can
// fail the request.
func (s *Server) save(ctx context.Context, path string, doc model.Document) error {
	if err := s.Store.Write(path, doc); err != nil {
		logrus.WithError(err).WithField("path", path).Error("error writing config")
		return err
	}
	logrus.WithField("path", path).Info("config saved")

	if s.History != nil {
		if _, err := s.History.Record(path, "Update "+filepath.ToSlash(path)); err != nil {
			logrus.WithError(err).WithField("path", path).Error("error recording config history")
		}
	}
	if s.Mirror != nil {
		data, err := configs.Encode(doc)
		if err == nil {
			err = s.Mirror.Put(ctx, path, data)
		}
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"path":   path,
				"mirror": s.Mirror.GetType(),
			}).Error("error mirroring config")
		}
	}
	return nil
}

func (s *Server) remove(path string) error {
	if err := s.Store.Delete(path); err != nil {
		return err
	}
	logrus.WithField("path", path).Info("config deleted")

	if s.History != nil {
		if _, err := s.History.Remove(path, "Delete "+filepath.ToSlash(path)); err != nil {
			logrus.WithError(err).WithField("path", path).Error("error recording config history")
		}
	}
	return nil
}
