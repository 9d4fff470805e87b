package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	casehandler "casekeeper/internal/cases/handler"
	identitymw "casekeeper/internal/identity/middleware"
	jwttoken "casekeeper/internal/jwt_token"
	"casekeeper/internal/platform/httpserver"
	policyhandler "casekeeper/internal/policy/handler"
	httptransport "casekeeper/internal/transport/http"
	"casekeeper/pkg/platform/audit/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	if a.outbox != nil && a.kafka != nil {
		relay := worker.NewRelay(a.outbox, a.kafka, cfg.Kafka.AuditTopic,
			worker.WithInterval(cfg.Kafka.RelayInterval),
			worker.WithLogger(log),
		)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
	}

	health := []httptransport.HealthCheck{{Name: "mongo", Check: a.mongo.Health}}
	if a.redis != nil {
		health = append(health, httptransport.HealthCheck{Name: "redis", Check: a.redis.Health})
	}
	if a.pg != nil {
		health = append(health, httptransport.HealthCheck{Name: "postgres", Check: a.pg.PingContext})
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  a.metrics,
		Gatherer: a.registry,
		Auth:     identitymw.RequireAuth(tokens, a.identity, log),
		Health:   health,
		Features: []httptransport.Registrar{
			policyhandler.New(a.policies, log),
			casehandler.New(a.cases, log,
				casehandler.WithUploadLimits(cfg.Uploads.MaxBytes, cfg.Uploads.MaxFilesPerCall),
				casehandler.WithAuthorizer(a.gate),
			),
		},
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	log.Info("starting casekeeper", "addr", cfg.Server.Addr, "ledger", cfg.Ledger.URL)
	return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), ln, cfg.Server.ShutdownTimeout, log)
}
