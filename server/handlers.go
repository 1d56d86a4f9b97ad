package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/sardine-ai/go-installer-config/configs"
	"github.com/sardine-ai/go-installer-config/mirror"
	"github.com/sardine-ai/go-installer-config/model"
	"github.com/sirupsen/logrus"
	"net/http"
	"path/filepath"
	"strconv"
)

// Query parameters naming a config file.
const (
	paramType  = "type"
	paramFile  = "file"
	paramChain = "chain"
	paramBase  = "base"
)

const maxBodyBytes = 1 << 20

var errMethodNotAllowed = errors.New("method not allowed")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps config errors onto HTTP statuses. The body carries the
// error text under "error", which the UI shows to the user.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errMethodNotAllowed):
		status = http.StatusMethodNotAllowed
	case errors.Is(err, configs.ErrInvalidConfigType),
		errors.Is(err, configs.ErrInvalidBaseChain),
		errors.Is(err, configs.ErrInvalidFilename),
		errors.Is(err, configs.ErrInvalidChainName),
		errors.Is(err, configs.ErrUnrepresentable):
		status = http.StatusBadRequest
	case errors.Is(err, configs.ErrConfigNotFound), errors.Is(err, mirror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, configs.ErrConfigParse):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	writeError(w, errMethodNotAllowed)
	return false
}

// resolveRequest resolves the config file named by the query parameters.
func resolveRequest(r *http.Request) (string, error) {
	q := r.URL.Query()
	target, err := model.ParseTarget(q.Get(paramType), q.Get(paramFile), q.Get(paramChain), q.Get(paramBase))
	if err != nil {
		return "", err
	}
	return configs.ResolveTarget(target)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete) {
		return
	}
	path, err := resolveRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		doc, err := s.Store.Read(path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodPost, http.MethodPut:
		var doc model.Document
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&doc); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid config document: %v", err)})
			return
		}
		if err := s.save(r.Context(), path, doc); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Saved "+filepath.ToSlash(path))
	case http.MethodDelete:
		if err := s.remove(path); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Deleted "+filepath.ToSlash(path))
	}
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	category, err := model.ParseCategory(r.URL.Query().Get(paramType))
	if err != nil {
		writeError(w, err)
		return
	}
	files, err := configs.AllowedFiles(category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	family, err := model.ParseChainFamily(r.URL.Query().Get(paramBase))
	if err != nil {
		writeError(w, err)
		return
	}
	names, err := s.Store.ChainNames(family)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	if s.History == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "config history is disabled"})
		return
	}
	path, err := resolveRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit " + v})
			return
		}
	}
	revisions, err := s.History.Log(path, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revisions)
}

// handleRestore replaces a config file with its mirrored copy.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if s.Mirror == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "config mirror is disabled"})
		return
	}
	path, err := resolveRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := s.Mirror.Get(r.Context(), path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Error("error fetching mirrored config")
		writeError(w, err)
		return
	}
	doc, err := configs.Decode(data)
	if err != nil {
		writeError(w, &configs.ParseError{Path: path, Err: err})
		return
	}
	if err := s.save(r.Context(), path, doc); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Restored "+filepath.ToSlash(path))
}
