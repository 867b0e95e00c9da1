// Package pipeline orchestrates one capture from face analysis through
// customer matching to the terminal event pushed to the kiosk frontend.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-kiosk/internal/cache"
	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/embedding"
	"github.com/kozaktomas/face-kiosk/internal/events"
	"github.com/kozaktomas/face-kiosk/internal/extraction"
	"github.com/kozaktomas/face-kiosk/internal/matching"
)

// Extractor is the face analysis dependency.
type Extractor interface {
	Analyze(ctx context.Context, images []string) (*extraction.AnalysisResult, error)
}

// Publisher pushes named events to connected kiosk frontends.
type Publisher interface {
	Publish(name string, payload any)
}

// AnalysisEvent is the terminal payload for a capture in which a face was
// found. Customer fields are present only when a match cleared the threshold.
type AnalysisEvent struct {
	Age               int    `json:"age"`
	Gender            string `json:"gender"`
	IsFace            bool   `json:"isFace"`
	IsCustomer        bool   `json:"isCustomer"`
	FaceEmbeddingData string `json:"faceEmbeddingData"`
	CustomerID        string `json:"customerId,omitempty"`
	CustomerAge       int    `json:"customerAge,omitempty"`
	CustomerGender    string `json:"customerGender,omitempty"`
}

// Outcome reports what a capture produced.
type Outcome struct {
	IsFace     bool
	IsCustomer bool
	Event      *AnalysisEvent
}

// Options carries the tunables the orchestrator needs.
type Options struct {
	AgeWindow          int
	MaxBroadCandidates int
	AnalysisTTL        time.Duration
}

// Orchestrator runs the capture pipeline.
type Orchestrator struct {
	extractor Extractor
	customers database.CustomerReader
	kiosks    database.KioskReader
	matcher   *matching.Matcher
	events    Publisher
	analysis  *cache.Store
	opts      Options
}

// New creates an orchestrator. The analysis store may be shared with the
// registration flow, which reads cached results back by fingerprint.
func New(
	extractor Extractor,
	customers database.CustomerReader,
	kiosks database.KioskReader,
	matcher *matching.Matcher,
	publisher Publisher,
	analysis *cache.Store,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		customers: customers,
		kiosks:    kiosks,
		matcher:   matcher,
		events:    publisher,
		analysis:  analysis,
		opts:      opts,
	}
}

// Analyze runs one capture end to end. Exactly one terminal event reaches
// subscribers per call: analysisResult when a face was found, otherwise
// waitingStatus{waiting:false}. An extraction failure also ends the capture
// with the waiting event and surfaces the error to the caller.
func (o *Orchestrator) Analyze(ctx context.Context, kioskID uuid.UUID, images []string) (*Outcome, error) {
	result, err := o.extractor.Analyze(ctx, images)
	if err != nil {
		log.Printf("kiosk %s: face analysis failed: %v", kioskID, err)
		o.events.Publish(events.EventWaitingStatus, map[string]any{"waiting": false})
		return nil, err
	}

	if !result.IsFace {
		o.events.Publish(events.EventWaitingStatus, map[string]any{"waiting": false})
		return &Outcome{IsFace: false}, nil
	}

	o.events.Publish(events.EventFaceDetectionResult, map[string]any{"isFace": true})

	// Only the extraction result is cached, keyed by embedding fingerprint;
	// matching runs fresh on every capture against the current POS-scoped
	// candidate set.
	o.analysis.Set(cache.AnalysisKey(result.Fingerprint()), result, o.opts.AnalysisTTL)

	event, err := o.match(ctx, kioskID, result)
	if err != nil {
		log.Printf("kiosk %s: match failed: %v", kioskID, err)
		o.events.Publish(events.EventWaitingStatus, map[string]any{"waiting": false})
		return nil, err
	}

	o.events.Publish(events.EventAnalysisResult, event)
	return &Outcome{IsFace: true, IsCustomer: event.IsCustomer, Event: event}, nil
}

// match finds the best customer for the analyzed face and builds the
// terminal event payload.
func (o *Orchestrator) match(ctx context.Context, kioskID uuid.UUID, result *extraction.AnalysisResult) (*AnalysisEvent, error) {
	event := &AnalysisEvent{
		Age:               result.Age,
		Gender:            result.Gender,
		IsFace:            true,
		FaceEmbeddingData: result.Embedding,
	}

	posID, err := o.kiosks.GetPosID(ctx, kioskID)
	if err != nil {
		return nil, fmt.Errorf("resolve kiosk %s: %w", kioskID, err)
	}

	input, err := embedding.Decode(result.Embedding)
	if err != nil {
		return nil, fmt.Errorf("decode analyzed embedding: %w", err)
	}

	customer, err := o.search(ctx, posID, input, result)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		event.IsCustomer = true
		event.CustomerID = customer.ID.String()
		event.CustomerAge = customer.Age
		event.CustomerGender = string(customer.Gender)
	}
	return event, nil
}

// search runs the narrow pass over demographically similar customers and
// widens to the whole POS population only when the narrow pass found nothing.
func (o *Orchestrator) search(ctx context.Context, posID uuid.UUID, input []float64, result *extraction.AnalysisResult) (*database.Customer, error) {
	gender, genderErr := database.GenderFromString(result.Gender)
	if genderErr == nil {
		narrow, err := o.customers.FindByPosGenderAndAgeBetween(ctx, posID, gender,
			result.Age-o.opts.AgeWindow, result.Age+o.opts.AgeWindow)
		if err != nil {
			return nil, fmt.Errorf("narrow candidate query: %w", err)
		}
		if match := o.matcher.FindBestMatch(ctx, input, narrow); match != nil {
			return pick(narrow, match), nil
		}
	} else {
		log.Printf("skipping narrow search: %v", genderErr)
	}

	broad, err := o.broadCandidates(ctx, posID, input)
	if err != nil {
		return nil, err
	}
	if match := o.matcher.FindBestMatch(ctx, input, broad); match != nil {
		return pick(broad, match), nil
	}
	return nil, nil
}

// broadCandidates loads the full POS population, or its nearest slice when
// the population exceeds the configured ceiling.
func (o *Orchestrator) broadCandidates(ctx context.Context, posID uuid.UUID, input []float64) ([]database.Customer, error) {
	count, err := o.customers.CountByPos(ctx, posID)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	if count > o.opts.MaxBroadCandidates {
		candidates, err := o.customers.FindNearestByPos(ctx, posID, input, o.opts.MaxBroadCandidates)
		if err != nil {
			return nil, fmt.Errorf("nearest candidate query: %w", err)
		}
		return candidates, nil
	}
	candidates, err := o.customers.FindAllByPos(ctx, posID)
	if err != nil {
		return nil, fmt.Errorf("broad candidate query: %w", err)
	}
	return candidates, nil
}

func pick(candidates []database.Customer, match *matching.Match) *database.Customer {
	for i := range candidates {
		if candidates[i].ID == match.CustomerID {
			return &candidates[i]
		}
	}
	return nil
}
