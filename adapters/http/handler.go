// Package http exposes a loader service's configuration snapshot over HTTP
// as read-only JSON.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/artpar/conftree/adapters/metrics"
	"github.com/artpar/conftree/app"
	"github.com/artpar/conftree/core/tree"
)

// Handler serves configuration snapshots.
type Handler struct {
	svc     *app.Service
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewHandler builds the router. The collector may be nil. Routes:
//
//	GET /config        full snapshot
//	GET /config/{key}  one field; dotted keys descend into namespaces
func NewHandler(svc *app.Service, collector *metrics.Collector, logger zerolog.Logger) http.Handler {
	h := &Handler{svc: svc, metrics: collector, logger: logger}

	r := chi.NewRouter()
	r.Get("/config", h.getAll)
	r.Get("/config/{key}", h.getKey)
	return r
}

func (h *Handler) getAll(w http.ResponseWriter, r *http.Request) {
	node := h.svc.Snapshot()
	if node == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}
	data, err := node.ToJSON()
	if err != nil {
		h.recordDecryptFailure(err)
		h.logger.Error().Err(err).Msg("snapshot export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *Handler) getKey(w http.ResponseWriter, r *http.Request) {
	node := h.svc.Snapshot()
	if node == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}

	key := chi.URLParam(r, "key")
	value, err := lookup(node, key)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.recordDecryptFailure(err)
		h.logger.Error().Err(err).Str("key", key).Msg("field read failed")
		writeError(w, http.StatusInternalServerError, "read failed")
		return
	}

	if child, ok := value.(*tree.Node); ok {
		data, err := child.ToJSON()
		if err != nil {
			h.recordDecryptFailure(err)
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"key": key, "value": value})
}

func (h *Handler) recordDecryptFailure(err error) {
	if h.metrics == nil {
		return
	}
	var de *tree.DecryptError
	if errors.As(err, &de) || errors.Is(err, tree.ErrNoCipher) {
		h.metrics.IncDecryptFailure()
	}
}

// isNotFound covers both absent fields and dotted paths that hit a scalar
// partway through.
func isNotFound(err error) bool {
	var nsf *tree.NoSuchFieldError
	var nan *tree.NotANamespaceError
	return errors.As(err, &nsf) || errors.As(err, &nan)
}

// lookup descends dotted keys ("database.url") through nested namespaces.
func lookup(node *tree.Node, key string) (any, error) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child, err := node.Child(part)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node.Get(parts[len(parts)-1])
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
