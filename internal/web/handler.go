// Package web is the HTML presentation surface: intake form, result page
// and the live bed board.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"neuro-triage/internal/agent"
	"neuro-triage/internal/assessment"
	"neuro-triage/internal/beds"
	"neuro-triage/internal/soap"
	"neuro-triage/internal/triage"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxUploadBytes = 25 << 20

type Handler struct {
	assessments assessment.Service
	speech      *agent.Speech
	poller      *beds.Poller
	tmpl        *template.Template
	logger      *zap.Logger
}

func NewHandler(assessments assessment.Service, speech *agent.Speech, poller *beds.Poller, logger *zap.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Handler{
		assessments: assessments,
		speech:      speech,
		poller:      poller,
		tmpl:        tmpl,
		logger:      logger,
	}, nil
}

// formValues echoes the raw submission back into the form.
type formValues struct {
	Age        string
	Severity   string
	OnsetHours string
	Symptoms   []string
	Notes      string
	SOAP       soap.Note
}

func (v formValues) Has(symptom string) bool {
	for _, s := range v.Symptoms {
		if strings.EqualFold(s, symptom) {
			return true
		}
	}
	return false
}

type page struct {
	Title      string
	Disclaimer string
}

type formPage struct {
	page
	Error      string
	Values     formValues
	Vocabulary []string
	Severities []triage.Severity
}

type resultPage struct {
	page
	Assessment   *assessment.Assessment
	Transcript   string
	SpeechNotice string
}

type bedsPage struct {
	page
	Readout  beds.Readout
	Interval string
}

func newPage(title string) page {
	return page{Title: title, Disclaimer: assessment.Disclaimer}
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("Failed to render template", zap.String("template", name), zap.Error(err))
	}
}

func (h *Handler) renderForm(w http.ResponseWriter, status int, values formValues, errMsg string) {
	h.render(w, status, "form.html", formPage{
		page:       newPage("Stroke Triage & Recovery"),
		Error:      errMsg,
		Values:     values,
		Vocabulary: triage.Vocabulary,
		Severities: triage.Severities,
	})
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, http.StatusOK, formValues{Age: "65", Severity: string(triage.SeverityModerate), OnsetHours: "2"}, "")
}

func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.renderForm(w, http.StatusBadRequest, formValues{}, "Could not read the submitted form.")
		return
	}

	values := formValues{
		Age:        strings.TrimSpace(r.FormValue("age")),
		Severity:   r.FormValue("severity"),
		OnsetHours: strings.TrimSpace(r.FormValue("onset_hours")),
		Symptoms:   r.Form["symptoms"],
		Notes:      r.FormValue("notes"),
		SOAP: soap.Note{
			Subjective: r.FormValue("soap_subjective"),
			Objective:  r.FormValue("soap_objective"),
			Assessment: r.FormValue("soap_assessment"),
			Plan:       r.FormValue("soap_plan"),
		},
	}

	age, err := strconv.Atoi(values.Age)
	if err != nil {
		h.renderForm(w, http.StatusBadRequest, values, "Age must be a whole number.")
		return
	}
	onset, err := strconv.ParseFloat(values.OnsetHours, 64)
	if err != nil {
		h.renderForm(w, http.StatusBadRequest, values, "Onset must be a number of hours.")
		return
	}

	result := resultPage{page: newPage("Triage Result")}
	notes := values.Notes

	if file, header, err := r.FormFile("audio"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr == nil && len(data) > 0 {
			text, ok := h.speech.TranscribeOrPlaceholder(r.Context(), header.Filename, data)
			if ok {
				result.Transcript = text
				notes = strings.TrimSpace(notes + "\n" + text)
			} else {
				result.SpeechNotice = text
			}
		}
	}

	a, err := h.assessments.Assess(r.Context(), assessment.Request{
		Age:        age,
		Severity:   values.Severity,
		OnsetHours: onset,
		Symptoms:   values.Symptoms,
		Notes:      notes,
		SOAP:       values.SOAP,
	})
	if err != nil {
		var verr *triage.ValidationError
		if errors.As(err, &verr) {
			h.renderForm(w, http.StatusBadRequest, values, verr.Error())
			return
		}
		h.logger.Error("Assessment failed", zap.Error(err))
		h.renderForm(w, http.StatusInternalServerError, values, "Assessment failed. Please try again.")
		return
	}

	result.Assessment = a
	h.render(w, http.StatusOK, "result.html", result)
}

func (h *Handler) Beds(w http.ResponseWriter, r *http.Request) {
	readout, err := h.poller.Latest(r.Context())
	if err != nil {
		http.Error(w, "Bed availability unavailable", http.StatusServiceUnavailable)
		return
	}
	h.render(w, http.StatusOK, "beds.html", bedsPage{
		page:     newPage("Bed Availability"),
		Readout:  readout,
		Interval: h.poller.Interval().String(),
	})
}

// BedStream pushes the board as server-sent events, once on connect and then
// on every refresh, until the client goes away.
func (h *Handler) BedStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for readout := range h.poller.Subscribe(r.Context()) {
		data, _ := json.Marshal(readout)
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.Form)
	r.Post("/assess", h.Assess)
	r.Get("/beds", h.Beds)
	r.Get("/beds/stream", h.BedStream)
}
