package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"neuro-triage/internal/triage"
)

// PDFRenderer and Exporter are implemented by the report package.
type PDFRenderer interface {
	RenderPDF(a Assessment) ([]byte, error)
}

type Exporter interface {
	ExportXLSX(ctx context.Context, list []Assessment) ([]byte, error)
}

type Handler struct {
	svc      Service
	pdf      PDFRenderer
	exporter Exporter
	logger   *zap.Logger
}

func NewHandler(svc Service, pdf PDFRenderer, exporter Exporter, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, pdf: pdf, exporter: exporter, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	a, err := h.svc.Assess(r.Context(), req)
	if err != nil {
		var verr *triage.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
			return
		}
		h.logger.Error("Assessment failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Assessment failed")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.svc.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list assessments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list assessments")
		return
	}
	if list == nil {
		list = []Assessment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Assessment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid assessment ID")
		return nil, false
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Assessment not found")
			return nil, false
		}
		h.logger.Error("Failed to load assessment", zap.String("assessment_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load assessment")
		return nil, false
	}
	return a, true
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}
	data, err := h.pdf.RenderPDF(*a)
	if err != nil {
		h.logger.Error("Failed to render PDF", zap.String("assessment_id", a.ID.String()), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "PDF rendering unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="assessment_%s.pdf"`, a.ID))
	w.Write(data)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), MaxListLimit)
	if err != nil {
		h.logger.Error("Failed to list assessments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to export assessments")
		return
	}
	data, err := h.exporter.ExportXLSX(r.Context(), list)
	if err != nil {
		h.logger.Error("Failed to export assessments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to export assessments")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="assessments_%s.xlsx"`, time.Now().UTC().Format("20060102_150405")))
	w.Write(data)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/export.xlsx", h.ExportXLSX)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/report.pdf", h.ReportPDF)
	})
}
