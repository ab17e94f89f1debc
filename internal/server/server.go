// Package server exposes the pipeline over HTTP. Boundary validation lives
// here: a request with neither text nor image is rejected before the
// pipeline ever sees it.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"fashion-search/internal/domain"
	"fashion-search/internal/pipeline"
)

// maxImageBytes bounds uploaded query images.
const maxImageBytes = 8 << 20

// Server handles the chat and search endpoints and serves product images.
type Server struct {
	pipeline    *pipeline.Pipeline
	index       domain.VectorIndex
	imageFolder string
	addr        string
}

// New creates the HTTP server.
func New(p *pipeline.Pipeline, index domain.VectorIndex, addr, imageFolder string) *Server {
	return &Server{pipeline: p, index: index, addr: addr, imageFolder: imageFolder}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.imageFolder != "" {
		mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(s.imageFolder))))
	}
	return loggingMiddleware(mux)
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleChat is the main conversational endpoint: multipart form with an
// optional message, an optional image, and the JSON-encoded prior turns.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	message, image, ok := s.readMessageAndImage(w, r)
	if !ok {
		return
	}

	var history []domain.ConversationTurn
	if raw := r.FormValue("conversation_history"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			log.Warn().Err(err).Msg("invalid conversation history, ignoring")
			history = nil
		}
	}

	result, err := s.pipeline.Handle(r.Context(), domain.QueryContext{
		Message: message,
		Image:   image,
		History: history,
	})
	if err != nil {
		// Client went away mid-pipeline; nothing left to say to it.
		log.Debug().Err(err).Msg("request canceled")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSearch is the secondary entry point: grouped products without the
// conversational framing.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	message, image, ok := s.readMessageAndImage(w, r)
	if !ok {
		return
	}

	products, params, err := s.pipeline.QuickSearch(r.Context(), message, image, 20)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "Search is unavailable right now. Please try again."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":          products,
		"extracted_params": params,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readMessageAndImage parses the multipart form and enforces the "at least
// one of text/image" boundary invariant. Reports ok=false after writing
// the error response.
func (s *Server) readMessageAndImage(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil && err != http.ErrNotMultipart {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed form data"})
		return "", nil, false
	}

	message := strings.TrimSpace(firstFormValue(r, "message", "text_query"))

	var image []byte
	if file, header, err := r.FormFile("image_file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "could not read uploaded image"})
			return "", nil, false
		}
		image = data
		log.Debug().Str("filename", header.Filename).Int("bytes", len(data)).Msg("image uploaded")
	}

	if message == "" && len(image) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Please send a message or upload an image."})
		return "", nil, false
	}
	return message, image, true
}

func firstFormValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writing response")
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
