package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/capture"
	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/events"
	"github.com/kozaktomas/face-kiosk/internal/extraction"
	"github.com/kozaktomas/face-kiosk/internal/pipeline"
)

// Analyzer runs the capture pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, kioskID uuid.UUID, images []string) (*pipeline.Outcome, error)
}

// Publisher pushes named events to connected kiosk frontends.
type Publisher interface {
	Publish(name string, payload any)
}

// CapturesHandler ingests camera frame bursts from kiosks.
type CapturesHandler struct {
	analyzer  Analyzer
	publisher Publisher
}

// NewCapturesHandler creates a captures handler.
func NewCapturesHandler(analyzer Analyzer, publisher Publisher) *CapturesHandler {
	return &CapturesHandler{analyzer: analyzer, publisher: publisher}
}

type captureRequest struct {
	KioskID string   `json:"kiosk_id"`
	Images  []string `json:"images"`
}

type captureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Submit handles POST /api/v1/captures. Subscribers see a waiting signal as
// soon as the frames are accepted; the pipeline then ends the capture with
// its own terminal event.
func (h *CapturesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	kioskID, err := uuid.Parse(req.KioskID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid kiosk id")
		return
	}

	frames, err := capture.ValidateFrames(req.Images)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	normalized := make([]string, 0, len(frames))
	for _, frame := range frames {
		b64, err := capture.Normalize(frame)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		normalized = append(normalized, b64)
	}

	h.publisher.Publish(events.EventWaitingStatus, map[string]any{"waiting": true})

	outcome, err := h.analyzer.Analyze(r.Context(), kioskID, normalized)
	switch {
	case errors.Is(err, extraction.ErrExtraction):
		respondJSON(w, http.StatusBadGateway, captureResponse{Success: false, Message: "face analysis unavailable"})
		return
	case errors.Is(err, database.ErrNotFound):
		respondJSON(w, http.StatusNotFound, captureResponse{Success: false, Message: "unknown kiosk"})
		return
	case err != nil:
		log.Printf("capture from kiosk %s failed: %v", kioskID, err)
		respondJSON(w, http.StatusInternalServerError, captureResponse{Success: false, Message: "capture processing failed"})
		return
	}

	message := "no face detected"
	if outcome.IsFace {
		message = "face analyzed"
		if outcome.IsCustomer {
			message = "customer recognized"
		}
	}
	respondJSON(w, http.StatusOK, captureResponse{Success: true, Message: message})
}
