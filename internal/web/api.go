package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"neuro-triage/internal/agent"
	"neuro-triage/internal/beds"
	"neuro-triage/internal/session"
)

const maxChunkBytes = 5 << 20

// API serves the JSON endpoints for speech, voice capture and beds.
type API struct {
	speech   *agent.Speech
	captures *session.Service
	poller   *beds.Poller
	logger   *zap.Logger
}

func NewAPI(speech *agent.Speech, captures *session.Service, poller *beds.Poller, logger *zap.Logger) *API {
	return &API{speech: speech, captures: captures, poller: poller, logger: logger}
}

// transcriptResponse carries either a transcript (OK) or a placeholder.
type transcriptResponse struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error retrieving audio file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read audio file")
		return
	}

	text, ok := a.speech.TranscribeOrPlaceholder(r.Context(), header.Filename, data)
	writeJSON(w, http.StatusOK, transcriptResponse{Text: text, OK: ok})
}

func (a *API) captureError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Capture session not found")
		return
	}
	a.logger.Error("Capture session failed", zap.String("session_id", id), zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "Capture unavailable")
}

func (a *API) NewCapture(w http.ResponseWriter, r *http.Request) {
	id, err := a.captures.NewCapture(r.Context())
	if err != nil {
		a.captureError(w, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (a *API) StartCapture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	started, err := a.captures.StartCapture(r.Context(), id)
	if err != nil {
		a.captureError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"started": started, "recording": true})
}

func (a *API) AppendChunk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChunkBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Audio chunk too large")
		return
	}
	accepted, err := a.captures.AppendChunk(r.Context(), id, chunk)
	if err != nil {
		a.captureError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

type stopResponse struct {
	Stopped bool   `json:"stopped"`
	Text    string `json:"text,omitempty"`
	OK      bool   `json:"ok"`
}

func (a *API) StopCapture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	audio, stopped, err := a.captures.StopCapture(r.Context(), id)
	if err != nil {
		a.captureError(w, id, err)
		return
	}
	if !stopped {
		writeJSON(w, http.StatusOK, stopResponse{})
		return
	}
	if len(audio) == 0 {
		writeJSON(w, http.StatusOK, stopResponse{Stopped: true, Text: agent.Placeholder(agent.ErrUnrecognizedSpeech)})
		return
	}

	text, ok := a.speech.TranscribeOrPlaceholder(r.Context(), "capture-"+id, audio)
	writeJSON(w, http.StatusOK, stopResponse{Stopped: true, Text: text, OK: ok})
}

func (a *API) Beds(w http.ResponseWriter, r *http.Request) {
	readout, err := a.poller.Latest(r.Context())
	if err != nil {
		a.logger.Error("Bed poll failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Bed availability unavailable")
		return
	}
	writeJSON(w, http.StatusOK, readout)
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func RegisterAPIRoutes(r chi.Router, a *API) {
	r.Get("/health", Health)
	r.Get("/beds", a.Beds)
	r.Post("/transcribe", a.Transcribe)
	r.Route("/capture", func(r chi.Router) {
		r.Post("/", a.NewCapture)
		r.Post("/{id}/start", a.StartCapture)
		r.Post("/{id}/chunk", a.AppendChunk)
		r.Post("/{id}/stop", a.StopCapture)
	})
}
