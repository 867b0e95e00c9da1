package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/cache"
	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/embedding"
	"github.com/kozaktomas/face-kiosk/internal/events"
	"github.com/kozaktomas/face-kiosk/internal/extraction"
	"github.com/kozaktomas/face-kiosk/internal/pipeline"
)

// CustomersHandler registers new customers and looks existing ones up.
type CustomersHandler struct {
	customers database.CustomerWriter
	kiosks    database.KioskReader
	store     *cache.Store
	embTTL    time.Duration
	publisher Publisher
}

// NewCustomersHandler creates a customers handler. The store is shared with
// the pipeline; registration reads cached analysis results back by embedding
// fingerprint and warms the per-customer vector cache.
func NewCustomersHandler(customers database.CustomerWriter, kiosks database.KioskReader, store *cache.Store, embTTL time.Duration, publisher Publisher) *CustomersHandler {
	return &CustomersHandler{
		customers: customers,
		kiosks:    kiosks,
		store:     store,
		embTTL:    embTTL,
		publisher: publisher,
	}
}

type registerRequest struct {
	KioskID     string `json:"kiosk_id"`
	PhoneNumber string `json:"phone_number"`
	Analysis    struct {
		Age       int    `json:"age"`
		Gender    string `json:"gender"`
		Embedding string `json:"embedding"`
	} `json:"analysis"`
}

type customerResponse struct {
	ID          string `json:"id"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Register handles POST /api/v1/customers. The submitted analysis usually
// repeats what the pipeline just computed; the cached result under the same
// embedding fingerprint takes precedence over client-supplied demographics.
func (h *CustomersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	kioskID, err := uuid.Parse(req.KioskID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid kiosk id")
		return
	}
	if req.PhoneNumber == "" {
		respondError(w, http.StatusBadRequest, "missing phone number")
		return
	}

	vec, err := embedding.Decode(req.Analysis.Embedding)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed embedding")
		return
	}

	age, genderStr := req.Analysis.Age, req.Analysis.Gender
	key := cache.AnalysisKey(embedding.Fingerprint(req.Analysis.Embedding))
	if cached, ok := h.store.Get(key); ok {
		if result, ok := cached.(*extraction.AnalysisResult); ok {
			age, genderStr = result.Age, result.Gender
		}
	}

	gender, err := database.GenderFromString(genderStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	posID, err := h.kiosks.GetPosID(r.Context(), kioskID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown kiosk")
			return
		}
		log.Printf("resolve kiosk %s: %v", kioskID, err)
		respondError(w, http.StatusInternalServerError, "kiosk lookup failed")
		return
	}

	raw, err := json.Marshal(vec)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode embedding failed")
		return
	}
	customer := &database.Customer{
		PosID:         posID,
		Gender:        gender,
		Age:           age,
		PhoneNumber:   req.PhoneNumber,
		FaceEmbedding: raw,
	}
	if err := h.customers.Save(r.Context(), customer); err != nil {
		log.Printf("save customer: %v", err)
		respondError(w, http.StatusInternalServerError, "customer save failed")
		return
	}

	h.store.Set(cache.EmbeddingKey(customer.ID.String()), vec, h.embTTL)

	h.publisher.Publish(events.EventAnalysisResult, &pipeline.AnalysisEvent{
		Age:               age,
		Gender:            genderStr,
		IsFace:            true,
		IsCustomer:        true,
		FaceEmbeddingData: req.Analysis.Embedding,
		CustomerID:        customer.ID.String(),
		CustomerAge:       customer.Age,
		CustomerGender:    string(customer.Gender),
	})

	respondJSON(w, http.StatusCreated, customerResponse{
		ID:          customer.ID.String(),
		Age:         customer.Age,
		Gender:      string(customer.Gender),
		PhoneNumber: customer.PhoneNumber,
	})
}

// Lookup handles GET /api/v1/customers/lookup. The search is scoped to the
// POS the kiosk belongs to; the same phone number may exist under another
// operator.
func (h *CustomersHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	kioskID, err := uuid.Parse(r.URL.Query().Get("kiosk_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid kiosk id")
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		respondError(w, http.StatusBadRequest, "missing phone")
		return
	}

	posID, err := h.kiosks.GetPosID(r.Context(), kioskID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown kiosk")
			return
		}
		log.Printf("resolve kiosk %s: %v", kioskID, err)
		respondError(w, http.StatusInternalServerError, "kiosk lookup failed")
		return
	}

	customer, err := h.customers.FindByPosAndPhone(r.Context(), posID, phone)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		log.Printf("phone lookup: %v", err)
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, customerResponse{
		ID:          customer.ID.String(),
		Age:         customer.Age,
		Gender:      string(customer.Gender),
		PhoneNumber: customer.PhoneNumber,
	})
}
