package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/docproc/internal/common"
)

// XLSXExporter is satisfied by *export.Service.
type XLSXExporter interface {
	ExportDocumentsXLSX(ctx context.Context, limit int) ([]byte, error)
}

type HTTPOption func(*httpHandler)

// WithMaxUploadBytes caps POST bodies; default 50 MiB.
func WithMaxUploadBytes(n int64) HTTPOption {
	return func(h *httpHandler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithExporter enables GET /v1/exports/documents.xlsx.
func WithExporter(e XLSXExporter) HTTPOption {
	return func(h *httpHandler) { h.exporter = e }
}

type httpHandler struct {
	svc       *DocumentService
	exporter  XLSXExporter
	maxUpload int64
	logger    *slog.Logger
}

// NewHTTPHandler returns the HTTP API:
//
//	POST /v1/documents?filename=   raw document body, returns the processed document
//	GET  /v1/documents             stored documents, newest first (?limit=&offset=)
//	GET  /v1/documents/{id}        one stored document with pages
//	GET  /v1/exports/documents.xlsx
//	GET  /healthz
func NewHTTPHandler(svc *DocumentService, logger *slog.Logger, opts ...HTTPOption) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{svc: svc, maxUpload: 50 << 20, logger: logger}
	for _, o := range opts {
		o(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/v1/documents", func(r chi.Router) {
		r.Post("/", h.process)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	if h.exporter != nil {
		r.Get("/v1/exports/documents.xlsx", h.export)
	}
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			rid := middleware.GetReqID(r.Context())
			next.ServeHTTP(ww, r.WithContext(common.WithRequestID(r.Context(), rid)))
			logger.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"request_id", rid,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func (h *httpHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"capabilities": h.svc.Capabilities(),
	})
}

func (h *httpHandler) process(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename query parameter is required")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "document exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	res, err := h.svc.Process(r.Context(), data, filename)
	if err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	status := http.StatusOK
	if res.ID != "" {
		status = http.StatusCreated
		w.Header().Set("Location", "/v1/documents/"+res.ID)
	}
	writeJSON(w, status, res)
}

func (h *httpHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *httpHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	recs, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": recs})
}

func (h *httpHandler) export(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	b, err := h.exporter.ExportDocumentsXLSX(r.Context(), limit)
	if err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// HTTPStatus maps a processing error onto an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrConversionFailed), errors.Is(err, common.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
