package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/registry"
)

type memoryStore struct {
	mu     sync.Mutex
	keys   map[string]bool
	setErr error
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return false, m.setErr
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, _ any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type recordingMailer struct {
	sent []Invite
	err  error
}

func (r *recordingMailer) SendInvite(_ context.Context, invite Invite) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, invite)
	return nil
}

type countingMetrics map[string]int

func (m countingMetrics) Consumed(_ string, outcome string) { m[outcome]++ }

func newDispatcher(t *testing.T, mailer Mailer, store *memoryStore) (*Dispatcher, countingMetrics) {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{DomainTopic: "domain"})
	require.NoError(t, err)
	manager, err := idempotency.NewManager(store, time.Hour)
	require.NoError(t, err)
	metrics := countingMetrics{}
	d, err := NewDispatcher(DispatcherParams{
		Mailer:      mailer,
		Decoders:    reg.Decoders(),
		Idempotency: manager,
		Metrics:     metrics,
		Logger:      logger.New(logger.Options{ServiceName: "notifications-test", Output: &bytes.Buffer{}}),
	})
	require.NoError(t, err)
	return d, metrics
}

func inviteBody(t *testing.T, eventID string, event payloads.InviteRequestedEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID, OccurredAt: time.Now().UTC(), Data: data})
	require.NoError(t, err)
	return body
}

func TestDispatcherSendsInviteOnce(t *testing.T) {
	mailer := &recordingMailer{}
	d, metrics := newDispatcher(t, mailer, &memoryStore{keys: map[string]bool{}})
	body := inviteBody(t, uuid.NewString(), payloads.InviteRequestedEvent{
		ConnectionID: uuid.New(),
		BrandName:    "North Apparel",
		Email:        "ops@acme.test",
		Link:         "https://app.tracebridge.test/register?token=abc",
	})

	require.NoError(t, d.Handle(context.Background(), enums.EventConnectionInviteRequest, body))
	require.NoError(t, d.Handle(context.Background(), enums.EventConnectionInviteRequest, body))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ops@acme.test", mailer.sent[0].Email)
	assert.Equal(t, "North Apparel", mailer.sent[0].BrandName)
	assert.Equal(t, 1, metrics["ack"])
	assert.Equal(t, 1, metrics["duplicate"])
}

func TestDispatcherIgnoresOtherEvents(t *testing.T) {
	mailer := &recordingMailer{}
	d, metrics := newDispatcher(t, mailer, &memoryStore{keys: map[string]bool{}})

	require.NoError(t, d.Handle(context.Background(), enums.EventProductCreated, []byte(`{}`)))
	assert.Empty(t, mailer.sent)
	assert.Equal(t, 1, metrics["skip"])
}

func TestDispatcherAcksDeliveryFailures(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	d, metrics := newDispatcher(t, mailer, &memoryStore{keys: map[string]bool{}})
	body := inviteBody(t, uuid.NewString(), payloads.InviteRequestedEvent{Email: "ops@acme.test", Link: "https://x.test/register?token=t"})

	require.NoError(t, d.Handle(context.Background(), enums.EventConnectionInviteRequest, body))
	assert.Equal(t, 1, metrics["failed"])
}

func TestDispatcherNacksWhenIdempotencyStoreFails(t *testing.T) {
	d, metrics := newDispatcher(t, &recordingMailer{}, &memoryStore{keys: map[string]bool{}, setErr: errors.New("redis down")})
	body := inviteBody(t, uuid.NewString(), payloads.InviteRequestedEvent{Email: "ops@acme.test", Link: "https://x.test/register?token=t"})

	require.Error(t, d.Handle(context.Background(), enums.EventConnectionInviteRequest, body))
	assert.Equal(t, 1, metrics["nack"])
}

func TestDispatcherDropsIncompletePayload(t *testing.T) {
	mailer := &recordingMailer{}
	d, metrics := newDispatcher(t, mailer, &memoryStore{keys: map[string]bool{}})
	body := inviteBody(t, uuid.NewString(), payloads.InviteRequestedEvent{ConnectionID: uuid.New()})

	require.NoError(t, d.Handle(context.Background(), enums.EventConnectionInviteRequest, body))
	assert.Empty(t, mailer.sent)
	assert.Equal(t, 1, metrics["drop"])
}

func TestLogMailerWritesLink(t *testing.T) {
	var buf bytes.Buffer
	mailer := NewLogMailer(logger.New(logger.Options{ServiceName: "mailer-test", Output: &buf}))

	require.NoError(t, mailer.SendInvite(context.Background(), Invite{Email: "ops@acme.test", Link: "https://app.test/register?token=abc"}))
	assert.Contains(t, buf.String(), "https://app.test/register?token=abc")

	require.Error(t, mailer.SendInvite(context.Background(), Invite{Email: "not-an-address"}))
}
