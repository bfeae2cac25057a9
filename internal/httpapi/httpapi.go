// Package httpapi binds the run pipeline to the single HTTP endpoint
// that post-receive hooks notify.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Runner is the subset of the pipeline's surface the HTTP front needs.
type Runner interface {
	Run(ctx context.Context, remote, commit, refName string) error
}

// Handler serves POST /api/postreceive.
type Handler struct {
	Pipeline Runner
	Log      *logrus.Entry
}

// NewMux builds the http.Handler for the whole service: the
// postreceive endpoint, everything else 404s via ServeMux's default
// behavior.
func NewMux(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/postreceive", h.servePostReceive)
	return mux
}

func (h *Handler) servePostReceive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if !utf8.Valid(body) {
		http.Error(w, "request body is not valid UTF-8", http.StatusBadRequest)
		return
	}

	fields := strings.Fields(string(body))
	if len(fields) < 1 {
		http.Error(w, "missing body args: remote parameter", http.StatusBadRequest)
		return
	}
	if len(fields) < 2 {
		http.Error(w, "missing body args: commit parameter", http.StatusBadRequest)
		return
	}
	if len(fields) < 3 {
		http.Error(w, "missing body args: reference name parameter", http.StatusBadRequest)
		return
	}
	remote, commit, refName := fields[0], fields[1], fields[2]

	if err := h.Pipeline.Run(r.Context(), remote, commit, refName); err != nil {
		if h.Log != nil {
			h.Log.WithError(err).WithField("remote", remote).Warn("pipeline run failed")
		}
		http.Error(w, fmt.Sprintf("run failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
