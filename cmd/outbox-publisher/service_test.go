package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/registry"
)

func TestProcessBatchContinuesAfterRetryableFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		productEvent(t, 0),
		productEvent(t, 0),
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	metrics := &fakeMetrics{}
	service := newTestService(t, repo, pub, productRegistry(), &fakeDLQRepo{}, metrics, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
	if metrics.published != 1 || metrics.failed != 1 || metrics.batches != 1 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestProcessBatchEmptyIsNotProcessed(t *testing.T) {
	metrics := &fakeMetrics{}
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, productRegistry(), &fakeDLQRepo{}, metrics, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected empty batch")
	}
	if metrics.batches != 0 {
		t.Fatalf("empty batch should not be observed")
	}
}

func TestProcessBatchDeadLettersUnresolvableEvent(t *testing.T) {
	event := productEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	eventRegistry := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dlqRepo := &fakeDLQRepo{}
	metrics := &fakeMetrics{}
	service := newTestService(t, repo, &fakePublisher{}, eventRegistry, dlqRepo, metrics, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected row marked terminal")
	}
	if metrics.deadLettered[string(enums.OutboxDLQReasonNonRetryable)] != 1 {
		t.Fatalf("expected dead letter metric, got %+v", metrics.deadLettered)
	}
}

func TestProcessBatchDeadLettersAtMaxAttempts(t *testing.T) {
	event := productEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
	}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, productRegistry(), dlqRepo, nil, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	if dlqRepo.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", dlqRepo.entries[0].ErrorReason)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row must not also be marked failed")
	}
}

func TestProcessBatchNilPublisherIsNonRetryable(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{productEvent(t, 0)}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, nil, productRegistry(), dlqRepo, nil, nil)
	service.publisherFactory = func(string) publisher { return nil }

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(dlqRepo.entries) != 1 {
		t.Fatalf("expected dlq entry for unconfigured topic")
	}
}

func TestProcessBatchReturnsBookkeepingErrors(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{productEvent(t, 0)},
		publishErr: errors.New("db down"),
	}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, productRegistry(), &fakeDLQRepo{}, nil, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected mark published error to surface")
	}
}

func TestBuildMessageCarriesRoutingAttributes(t *testing.T) {
	event := productEvent(t, 0)
	tenantID := uuid.New()
	envelope := outbox.PayloadEnvelope{
		Version: 1,
		EventID: event.ID.String(),
		Actor:   &outbox.ActorRef{UserID: uuid.New(), TenantID: tenantID, TenantType: enums.TenantTypeBrand},
	}

	msg := buildMessage(event, envelope)
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatalf("message body must be the stored envelope")
	}
	if msg.Attributes["event_type"] != string(enums.EventProductCreated) {
		t.Fatalf("unexpected event_type %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["tenant_id"] != tenantID.String() {
		t.Fatalf("unexpected tenant_id %q", msg.Attributes["tenant_id"])
	}
	if msg.Attributes["event_version"] != "1" {
		t.Fatalf("unexpected event_version %q", msg.Attributes["event_version"])
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("expected doubled base, got %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap, got %s", got)
	}
}

func TestNewServiceRequiresDLQ(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: &fakeRepo{},
		Registry:   productRegistry(),
	})
	if err == nil {
		t.Fatalf("expected error without dlq repository")
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, eventRegistry registryResolver, dlq dlqRepository, metrics publisherMetrics, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		outboxCfg = *override
	}
	params := ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         eventRegistry,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	}
	if metrics != nil {
		params.Metrics = metrics
	}
	service, err := NewService(params)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func productEvent(tb testing.TB, attempts int) models.OutboxEvent {
	tb.Helper()
	productID := uuid.New()
	data, err := json.Marshal(payloads.ProductCreatedEvent{ProductID: productID, SKU: "SKU-1", Name: "Widget"})
	if err != nil {
		tb.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventProductCreated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

func productRegistry() *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "domain-topic", AggregateType: enums.AggregateProduct},
		Payload:    &payloads.ProductCreatedEvent{},
	}}
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) Claim(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(_ *gorm.DB, id uuid.UUID, _ time.Time) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) RecordFailure(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) Park(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error { return nil }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
}

func (f *fakePublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeMetrics struct {
	published    int
	failed       int
	batches      int
	deadLettered map[string]int
}

func (f *fakeMetrics) Published(string) { f.published++ }

func (f *fakeMetrics) Failed(string) { f.failed++ }

func (f *fakeMetrics) DeadLettered(_ string, reason string) {
	if f.deadLettered == nil {
		f.deadLettered = map[string]int{}
	}
	f.deadLettered[reason]++
}

func (f *fakeMetrics) ObserveBatch(time.Duration) { f.batches++ }

func TestNewServiceReportsEveryMissingDependency(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, name := range []string{"logger", "database client", "pubsub client", "outbox repository", "event registry", "dlq repository"} {
		if !strings.Contains(err.Error(), name+" is required") {
			t.Fatalf("missing %q in %v", name, err)
		}
	}
}

func TestPacerWaitStopsOnCancel(t *testing.T) {
	p := newPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.wait(ctx, true); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if p.current != 2*time.Hour && p.current != maxBackoff {
		t.Fatalf("expected backoff to grow, got %s", p.current)
	}
}
