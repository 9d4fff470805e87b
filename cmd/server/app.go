package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"

	"casekeeper/internal/authz"
	caseservice "casekeeper/internal/cases/service"
	casestore "casekeeper/internal/cases/store"
	identityservice "casekeeper/internal/identity/service"
	identitystore "casekeeper/internal/identity/store"
	"casekeeper/internal/ledger"
	"casekeeper/internal/platform/config"
	"casekeeper/internal/platform/kafka"
	"casekeeper/internal/platform/logger"
	"casekeeper/internal/platform/metrics"
	platformmongo "casekeeper/internal/platform/mongo"
	"casekeeper/internal/platform/postgres"
	platformredis "casekeeper/internal/platform/redis"
	policyservice "casekeeper/internal/policy/service"
	policystore "casekeeper/internal/policy/store"
	"casekeeper/pkg/platform/audit"
	"casekeeper/pkg/platform/audit/publisher"
	auditmemory "casekeeper/pkg/platform/audit/store/memory"
	auditpostgres "casekeeper/pkg/platform/audit/store/postgres"
	"casekeeper/pkg/platform/circuit"
)

// app holds every long-lived dependency. Optional backends are nil when not
// configured.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	mongo  *platformmongo.Client
	redis  *platformredis.Client
	pg     *sql.DB
	kafka  *kgo.Client
	outbox *auditpostgres.Store
	audit  *publisher.Publisher

	users    *identitystore.MongoUserStore
	identity *identityservice.Service
	gate     *authz.Gate
	ledger   *ledger.HTTPClient
	policies *policyservice.Service
	cases    *caseservice.Service

	caseStore   *casestore.MongoCaseStore
	policyStore *policystore.MongoPolicyStore
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.New(cfg.Server.LogLevel), nil
}

// newApp connects the backends and builds the services.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	var err error
	if a.mongo, err = platformmongo.New(ctx, cfg.Mongo); err != nil {
		return nil, err
	}
	if a.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		a.close(ctx)
		return nil, err
	}
	if a.pg, err = postgres.New(ctx, cfg.Postgres); err != nil {
		a.close(ctx)
		return nil, err
	}
	if a.kafka, err = kafka.New(cfg.Kafka); err != nil {
		a.close(ctx)
		return nil, err
	}

	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if a.pg != nil {
		a.outbox = auditpostgres.New(a.pg)
		auditStore = a.outbox
	} else {
		log.Warn("POSTGRES_DSN not set; audit events are kept in memory")
	}
	a.audit = publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))

	db := a.mongo.Database()
	a.users = identitystore.NewMongoUserStore(db)
	var directory identityservice.Directory = a.users
	if a.redis != nil {
		directory = identitystore.NewRedisCache(a.redis.Client, a.users, cfg.Auth.PrincipalCacheTTL, log, a.metrics)
	}
	a.identity = identityservice.New(directory, identityservice.NewTenantResolver(cfg.Tenants), identityservice.WithLogger(log))

	a.gate = authz.NewGate(authz.WithLogger(log), authz.WithAuditPublisher(a.audit), authz.WithMetrics(a.metrics))

	breaker := circuit.New("ledger",
		circuit.WithFailureThreshold(cfg.Ledger.BreakerThreshold),
		circuit.WithCooldown(cfg.Ledger.BreakerCooldown),
	)
	a.ledger, err = ledger.NewHTTPClient(cfg.Ledger.URL,
		ledger.WithTimeout(cfg.Ledger.Timeout),
		ledger.WithBreaker(breaker),
		ledger.WithLogger(log),
		ledger.WithMetrics(a.metrics),
	)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("ledger client: %w", err)
	}

	a.policyStore = policystore.NewMongoPolicyStore(db)
	a.policies = policyservice.New(a.policyStore, a.ledger, a.gate,
		policyservice.WithLogger(log),
		policyservice.WithAuditPublisher(a.audit),
		policyservice.WithMetrics(a.metrics),
	)

	a.caseStore = casestore.NewMongoCaseStore(db)
	a.cases = caseservice.New(a.caseStore, a.policies, a.ledger, a.gate,
		caseservice.WithLogger(log),
		caseservice.WithAuditPublisher(a.audit),
		caseservice.WithMetrics(a.metrics),
		caseservice.WithUploadConcurrency(cfg.Uploads.Concurrency),
	)
	return a, nil
}

// close releases backends in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	if a.audit != nil {
		a.audit.Close()
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			a.log.Warn("mongo disconnect failed", "error", err)
		}
	}
}
