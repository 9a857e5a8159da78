// Package datasource owns the process-wide connections: the document
// store, the broker and Redis. Store and broker connect on first use.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	"github.com/md-rashed-zaman/tasktracker/libs/broker/kafka"
	"github.com/md-rashed-zaman/tasktracker/libs/broker/memory"
	"github.com/md-rashed-zaman/tasktracker/libs/broker/natsjs"
	"github.com/md-rashed-zaman/tasktracker/libs/config"
	"github.com/md-rashed-zaman/tasktracker/libs/db"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore/memstore"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore/pgstore"
	"github.com/md-rashed-zaman/tasktracker/libs/runtime"
	"github.com/redis/go-redis/v9"
)

const (
	BrokerNATS   = "nats"
	BrokerKafka  = "kafka"
	BrokerMemory = "memory"
)

type Config struct {
	// Name identifies this process to the broker.
	Name string
	// DatabaseURL empty selects the in-memory store.
	DatabaseURL  string
	DBMaxConns   int
	Broker       string
	NATSURL      string
	NATSStream   string
	NATSSubjects []string
	KafkaBrokers []string
	// RedisURL empty disables Redis.
	RedisURL string
}

// ConfigFromEnv reads the shared connection settings.
func ConfigFromEnv(name string) (Config, error) {
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Name:         name,
		DatabaseURL:  config.String("DATABASE_URL", ""),
		DBMaxConns:   maxConns,
		Broker:       strings.ToLower(config.String("BROKER", BrokerNATS)),
		NATSURL:      config.String("NATS_URL", "nats://localhost:4222"),
		NATSStream:   config.String("NATS_STREAM", "EVENTS"),
		NATSSubjects: config.List("NATS_SUBJECTS", []string{"User.>", "Task.>"}),
		KafkaBrokers: kafka.SplitBrokers(config.String("KAFKA_BROKERS", "")),
		RedisURL:     config.String("REDIS_URL", ""),
	}
	switch cfg.Broker {
	case BrokerNATS, BrokerMemory:
	case BrokerKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, errors.New("KAFKA_BROKERS is required when BROKER=kafka")
		}
	default:
		return Config{}, fmt.Errorf("BROKER must be nats, kafka or memory (got %q)", cfg.Broker)
	}
	return cfg, nil
}

type Sources struct {
	cfg    Config
	logger *slog.Logger

	pool   *Lazy[*db.Pool]
	store  *Lazy[docstore.Store]
	broker *Lazy[broker.Broker]
	redis  *redis.Client
}

func New(cfg Config, logger *slog.Logger) (*Sources, error) {
	s := &Sources{cfg: cfg, logger: logger}
	s.pool = NewLazy(s.openPool)
	s.store = NewLazy(s.openStore)
	s.broker = NewLazy(s.openBroker)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		s.redis = redis.NewClient(opts)
	}
	return s, nil
}

// Store returns the shared document store, connecting on first use.
func (s *Sources) Store(ctx context.Context) (docstore.Store, error) {
	return s.store.Get(ctx)
}

// Broker returns the shared broker, connecting on first use.
func (s *Sources) Broker(ctx context.Context) (broker.Broker, error) {
	return s.broker.Get(ctx)
}

// Redis is nil when REDIS_URL is not set.
func (s *Sources) Redis() *redis.Client {
	return s.redis
}

// ReadyChecks reports each configured dependency. Checking also performs
// the first connection when nothing has used the dependency yet.
func (s *Sources) ReadyChecks() []runtime.ReadyCheck {
	checks := []runtime.ReadyCheck{
		{Name: "store", Check: func(ctx context.Context) error {
			st, err := s.Store(ctx)
			if err != nil {
				return err
			}
			return st.Ping(ctx)
		}},
		{Name: "broker", Check: func(ctx context.Context) error {
			b, err := s.Broker(ctx)
			if err != nil {
				return err
			}
			return b.Ping(ctx)
		}},
	}
	if s.redis != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close releases whatever has been opened.
func (s *Sources) Close() error {
	var errs []error
	if b, ok := s.broker.Peek(); ok {
		errs = append(errs, b.Close())
	}
	if p, ok := s.pool.Peek(); ok {
		p.Close()
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}

func (s *Sources) openPool(ctx context.Context) (*db.Pool, error) {
	pool, err := db.Open(ctx, s.cfg.DatabaseURL, db.Options{
		MaxConns:        int32(s.cfg.DBMaxConns),
		ApplicationName: s.cfg.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.logger.Info("database connected")
	return pool, nil
}

func (s *Sources) openStore(ctx context.Context) (docstore.Store, error) {
	if s.cfg.DatabaseURL == "" {
		s.logger.Warn("DATABASE_URL not set; using in-memory document store")
		return memstore.New(), nil
	}
	pool, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	st := pgstore.New(pool.Pool)
	if err := st.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Sources) openBroker(ctx context.Context) (broker.Broker, error) {
	switch s.cfg.Broker {
	case BrokerKafka:
		b, err := kafka.New(s.cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		s.logger.Info("kafka broker configured", "brokers", s.cfg.KafkaBrokers)
		return b, nil
	case BrokerMemory:
		s.logger.Warn("using in-memory broker; events stay inside this process")
		return memory.New(), nil
	default:
		b, err := natsjs.Connect(ctx, natsjs.Config{
			URL:      s.cfg.NATSURL,
			Stream:   s.cfg.NATSStream,
			Subjects: s.cfg.NATSSubjects,
			Name:     s.cfg.Name,
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info("nats connected", "url", s.cfg.NATSURL, "stream", s.cfg.NATSStream)
		return b, nil
	}
}

// Publisher resolves the broker on each publish, so the first event sent
// is what opens the connection.
func (s *Sources) Publisher() broker.Publisher {
	return lazyPublisher{s: s}
}

type lazyPublisher struct {
	s *Sources
}

func (p lazyPublisher) Publish(ctx context.Context, msg broker.Message) error {
	b, err := p.s.Broker(ctx)
	if err != nil {
		return err
	}
	return b.Publish(ctx, msg)
}

// Subscriber resolves the broker when the consumer subscribes.
func (s *Sources) Subscriber() broker.Subscriber {
	return lazySubscriber{s: s}
}

type lazySubscriber struct {
	s *Sources
}

func (l lazySubscriber) PullSubscribe(ctx context.Context, durable string, subjects []string) (broker.Subscription, error) {
	b, err := l.s.Broker(ctx)
	if err != nil {
		return nil, err
	}
	return b.PullSubscribe(ctx, durable, subjects)
}
