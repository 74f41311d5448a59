// Package mocks provides testify mocks for the outbound channel ports and
// small hand-rolled doubles for observability concerns. Repository ports are
// exercised against the in-memory implementations instead.
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"analyst-backend/application/ports"
	"analyst-backend/domain/events"
)

// TextCompletion mocks the synthesis model port.
type TextCompletion struct {
	mock.Mock
}

func (m *TextCompletion) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *TextCompletion) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

// Telephony mocks the outbound calling port.
type Telephony struct {
	mock.Mock
}

func (m *Telephony) InitiateCall(ctx context.Context, phoneNumber, topic string) (*ports.CallResult, error) {
	args := m.Called(ctx, phoneNumber, topic)
	if v := args.Get(0); v != nil {
		return v.(*ports.CallResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Telephony) Transcribe(ctx context.Context, callID string) (string, error) {
	args := m.Called(ctx, callID)
	return args.String(0), args.Error(1)
}

// Messaging mocks the email and SMS delivery port.
type Messaging struct {
	mock.Mock
}

func (m *Messaging) Send(ctx context.Context, msg ports.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// WebFetch mocks the page scraping port.
type WebFetch struct {
	mock.Mock
}

func (m *WebFetch) Scrape(ctx context.Context, url string) (*ports.Page, error) {
	args := m.Called(ctx, url)
	if v := args.Get(0); v != nil {
		return v.(*ports.Page), args.Error(1)
	}
	return nil, args.Error(1)
}

// VectorStore mocks the similarity index port.
type VectorStore struct {
	mock.Mock
}

func (m *VectorStore) Upsert(ctx context.Context, id, text string, embedding []float32) error {
	args := m.Called(ctx, id, text, embedding)
	return args.Error(0)
}

func (m *VectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]ports.VectorMatch, error) {
	args := m.Called(ctx, embedding, limit)
	if v := args.Get(0); v != nil {
		return v.([]ports.VectorMatch), args.Error(1)
	}
	return nil, args.Error(1)
}

// EventRecorder captures published domain events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (r *EventRecorder) Publish(ctx context.Context, domainEvents ...events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, domainEvents...)
	return nil
}

// Events returns a snapshot of everything published so far
func (r *EventRecorder) Events() []events.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

// TypesSeen returns the event types published, in order
func (r *EventRecorder) TypesSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType())
	}
	return types
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordExecution(string, string, float64) {}
func (NopMetrics) ExecutionStarted(string)                 {}
func (NopMetrics) ExecutionFinished(string)                {}
func (NopMetrics) RecordMemoGenerated(string, float64)     {}
func (NopMetrics) RecordChannelCall(string, string, float64) {
}
