package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Park(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherMetrics interface {
	Published(eventType string)
	Failed(eventType string)
	DeadLettered(eventType, reason string)
	ObserveBatch(d time.Duration)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          publisherMetrics
}

func (p ServiceParams) check() error {
	var err error
	require := func(ok bool, name string) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s is required", name))
		}
	}
	require(p.Config != nil, "config")
	require(p.Logger != nil, "logger")
	require(p.DB != nil, "database client")
	require(p.PubSub != nil, "pubsub client")
	require(p.Repository != nil, "outbox repository")
	require(p.Registry != nil, "event registry")
	require(p.DLQRepository != nil, "dlq repository")
	return err
}

// Service drains committed outbox rows to Pub/Sub. Rows that can never be
// delivered are copied to the DLQ and parked in the same transaction.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	metrics          publisherMetrics
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	now              func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.check(); err != nil {
		return nil, err
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		metrics:          params.Metrics,
		publisherFactory: factory,
		batchSize:        orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts:      orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(orDefault(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Service) ready(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	probe := func(name string, ping func(context.Context) error) {
		group.Go(func() error {
			if err := ping(groupCtx); err != nil {
				s.logg.Error(groupCtx, name+" ping failed", err)
				return fmt.Errorf("%s ping failed: %w", name, err)
			}
			return nil
		})
	}
	probe("database", s.db.Ping)
	probe("pubsub", s.pubsub.Ping)
	return group.Wait()
}

// Run polls until ctx is cancelled. A non-empty batch is followed immediately
// by the next one. Batch errors back off exponentially with jitter.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	p := newPacer(s.pollInterval)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
		}
		if err == nil && processed {
			p.reset()
			continue
		}
		if err := p.wait(ctx, err != nil); err != nil {
			return err
		}
	}
}

// pacer spaces out polls. Idle polls wait one interval; failing polls double
// the wait up to maxBackoff.
type pacer struct {
	base    time.Duration
	current time.Duration
	rnd     *rand.Rand
}

func newPacer(base time.Duration) *pacer {
	return &pacer{base: base, current: base, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *pacer) reset() { p.current = p.base }

func (p *pacer) wait(ctx context.Context, failed bool) error {
	d := p.base
	if failed {
		p.current = nextBackoff(p.current, p.base, maxBackoff)
		d = p.current
	} else {
		p.reset()
	}
	d += time.Duration(p.rnd.Int63n(int64(jitterWindow)))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

var errNilResult = errors.New("publish result is nil")
