package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// RequestIDHeader carries the request ID on every response.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds a query request body.
const maxBodyBytes = 1 << 20

type requestIDKey struct{}

// QueryRequest is the body of POST /v1/query. Fields stay untyped so the
// bridge validator, not the JSON decoder, rejects wrongly typed input.
type QueryRequest struct {
	Namespace  any `json:"namespace"`
	Query      any `json:"query"`
	Properties any `json:"properties,omitempty"`
}

// QueryResponse is the success body of POST /v1/query.
type QueryResponse struct {
	Records core.ResultSet `json:"records"`
	Count   int            `json:"count"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind core.ErrorKind) int {
	switch kind {
	case core.InvalidArgument:
		return http.StatusBadRequest
	case core.NamespaceError:
		return http.StatusNotFound
	case core.QueryError:
		return http.StatusUnprocessableEntity
	case core.SubsystemFault:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, core.NewError(core.InvalidArgument, err, "invalid request body"))
		return
	}

	rs, err := s.bridge.Query(r.Context(), req.Namespace, req.Query, req.Properties)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Records: rs, Count: len(rs)})
}

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	nss, err := s.bridge.Namespaces(r.Context())
	if err != nil {
		s.writeError(w, r, core.NewError(core.SubsystemFault, err, "failed to list namespaces"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"namespaces": nss})
}

// handleEvents streams fixture reloads as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var be *core.BridgeError
	if !errors.As(err, &be) {
		be = &core.BridgeError{Message: err.Error()}
	}
	status := StatusFor(be.Kind)

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("request_id", RequestID(r.Context())),
		slog.String("kind", be.Kind.String()),
		slog.String("error", be.Message))

	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Kind: be.Kind.String(), Message: be.Message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// Middleware
// =============================================================================

// RequestID returns the request ID stored by the requestID middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID reuses a caller-supplied X-Request-ID or assigns a new UUID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// logRequests logs each request and counts it by route.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RequestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

		s.logger.Debug("request",
			slog.String("request_id", RequestID(r.Context())),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", time.Since(start)))
	})
}
