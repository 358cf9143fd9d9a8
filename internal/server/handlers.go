package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/pageshot/internal/storage"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

const maxBodyBytes = 64 << 10

type indexResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type submitRequest struct {
	URL string `json:"url" validate:"required"`
}

type screenshotRef struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

type submitResponse struct {
	Success     bool            `json:"success"`
	ID          string          `json:"id"`
	Message     string          `json:"message"`
	URL         string          `json:"url"`
	Attempts    int             `json:"attempts"`
	Screenshots []screenshotRef `json:"screenshots"`
}

type listResponse struct {
	Success     bool            `json:"success"`
	URL         string          `json:"url,omitempty"`
	Total       int             `json:"total"`
	Screenshots []screenshotRef `json:"screenshots"`
}

type errorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	URL     string `json:"url,omitempty"`
}

func ref(name string) screenshotRef {
	return screenshotRef{Filename: name, Path: "/screenshots/" + name}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	log := s.log.With("request_id", middleware.GetReqID(r.Context()))

	var req submitRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("malformed request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		log.Warn("request missing URL parameter")
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	log.Info("processing screenshot request", "url", req.URL)

	// A client that disconnects does not abort a capture already under way.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.RequestTimeout)
	defer cancel()

	res, err := s.capturer.Capture(ctx, req.URL)
	if err != nil {
		status, msg := statusFor(err)
		log.Error("screenshot capture failed", "url", req.URL, "class", capture.ClassOf(err), "error", err)
		writeError(w, status, msg)
		return
	}

	shots := make([]screenshotRef, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		shots = append(shots, ref(filepath.Base(a.Path)))
	}
	log.Info("screenshots captured", "url", req.URL, "count", len(shots), "capture_id", res.ID)

	writeJSON(w, http.StatusOK, submitResponse{
		Success:     true,
		ID:          res.ID,
		Message:     fmt.Sprintf("Captured %d screenshots for URL: %s", len(shots), req.URL),
		URL:         req.URL,
		Attempts:    res.Attempts,
		Screenshots: shots,
	})
}

// statusFor maps a capture error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	switch capture.ClassOf(err) {
	case capture.ClassValidation:
		return http.StatusBadRequest, "Invalid URL: " + err.Error()
	case capture.ClassTimeout:
		return http.StatusGatewayTimeout, "Page load timeout: " + err.Error()
	default:
		return http.StatusInternalServerError, "Failed to capture screenshot: " + err.Error()
	}
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	files, err := s.store.List()
	if err != nil {
		s.log.Error("failed to list screenshots", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list screenshots")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success:     true,
		Total:       len(files),
		Screenshots: refs(files),
	})
}

func (s *Server) handleByURL(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "URL parameter is required")
		return
	}

	files, err := s.store.FindByURL(url)
	if err != nil {
		s.log.Error("failed to look up screenshots", "url", url, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve screenshots")
		return
	}
	if len(files) == 0 {
		failed := false
		writeJSON(w, http.StatusNotFound, errorResponse{
			Success: &failed,
			Error:   "No screenshots found for this URL",
			URL:     url,
		})
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Success:     true,
		URL:         url,
		Total:       len(files),
		Screenshots: refs(files),
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	f, info, err := s.store.Open(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		s.log.Warn("invalid filename requested", "filename", name)
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "Screenshot not found")
		return
	case err != nil:
		s.log.Error("failed to open screenshot", "filename", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving screenshot")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func refs(files []storage.File) []screenshotRef {
	out := make([]screenshotRef, 0, len(files))
	for _, f := range files {
		out = append(out, ref(f.Name))
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
