package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/storage"
	"github.com/epiforge/ccdl/internal/translate"
)

type handler struct {
	svc    *translate.Service
	runs   storage.RunStore
	mode   domain.Mode
	logger *slog.Logger
}

// decodeResponse is the body of a successful POST /v1/decode.
type decodeResponse struct {
	CCDL     string   `json:"ccdl"`
	Events   int      `json:"events"`
	Warnings []string `json:"warnings,omitempty"`
}

// encodeRequest is the body of POST /v1/encode.
type encodeRequest struct {
	CCDL string `json:"ccdl"`
}

// encodeResponse is the body of a successful POST /v1/encode.
type encodeResponse struct {
	Campaign json.RawMessage `json:"campaign"`
	Events   int             `json:"events"`
	Warnings []string        `json:"warnings,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// decode accepts a raw campaign JSON document and returns its CCDL text.
func (h *handler) decode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	mode, err := h.requestMode(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.Decode(r.Context(), body, mode)
	if err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	h.record(r, result, mode)

	writeJSON(w, http.StatusOK, decodeResponse{
		CCDL:     string(result.Output),
		Events:   result.Events,
		Warnings: result.Warnings,
	})
}

// encode accepts CCDL text and returns a campaign JSON document.
func (h *handler) encode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	mode, err := h.requestMode(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.Encode(r.Context(), []byte(req.CCDL), mode)
	if err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	h.record(r, result, mode)

	writeJSON(w, http.StatusOK, encodeResponse{
		Campaign: result.Output,
		Events:   result.Events,
		Warnings: result.Warnings,
	})
}

// listRuns returns the most recent translation runs, newest first.
func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, r, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// requestMode resolves the strictness for one request: the mode query
// parameter when present, the server default otherwise.
func (h *handler) requestMode(r *http.Request) (domain.Mode, error) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		return h.mode, nil
	}
	return domain.ParseMode(raw)
}

func (h *handler) record(r *http.Request, result *translate.Result, mode domain.Mode) {
	run := &storage.Run{
		ID:        GetRequestID(r.Context()),
		Direction: string(result.Direction),
		Mode:      mode.String(),
		Events:    result.Events,
		Warnings:  len(result.Warnings),
		Duration:  result.Duration,
	}
	if err := h.runs.RecordRun(r.Context(), run); err != nil {
		h.logger.Error("record run", slog.String("error", err.Error()))
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	AddError(r.Context(), err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
