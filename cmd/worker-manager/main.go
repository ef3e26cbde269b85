// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eduprima/internal/candidates"
	"eduprima/internal/common/auth"
	awsclient "eduprima/internal/common/aws"
	"eduprima/internal/common/camunda"
	"eduprima/internal/common/config"
	"eduprima/internal/common/database"
	"eduprima/internal/common/logger"
	"eduprima/internal/common/observability"
	"eduprima/internal/deletion"
	"eduprima/internal/preferences"
	"eduprima/internal/store/postgres"
	confirmuserdeletion "eduprima/internal/workers/accounts/confirm-user-deletion"
	previewuserdeletion "eduprima/internal/workers/accounts/preview-user-deletion"
	saveweightprofile "eduprima/internal/workers/matching/save-weight-profile"
	scoretutors "eduprima/internal/workers/matching/score-tutors"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const previewFunction = "preview_user_deletion"

// retryWithBackoff retries an operation with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			if i > 0 {
				log.Info(fmt.Sprintf("%s succeeded after %d retries", operationName, i))
			}
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying in %v (attempt %d/%d)", operationName, delay, i+1, maxRetries),
				zap.Error(err))
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d retries: %w", operationName, maxRetries, err)
}

// pinger is anything /ready has to reach before the manager reports itself ready.
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	appLogger := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	}, zapLog)
	defer obs.Shutdown()

	ctx := context.Background()
	deps := map[string]pinger{}

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("failed to connect to Zeebe", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var e error
		pg, e = database.NewPostgres(cfg.Database.Postgres)
		if e != nil {
			return e
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if e = pg.Ping(pingCtx); e != nil {
			pg.Close()
			return e
		}
		return nil
	}, 5, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()
	deps["postgres"] = pg
	zapLog.Info("PostgreSQL connected successfully")

	recordStore := postgres.New(pg.DB, postgres.WithPreviewFunction(deletion.CoreTable, previewFunction))

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var e error
		rdb, e = database.NewRedis(cfg.Database.Redis)
		if e != nil {
			return e
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if e = rdb.Ping(pingCtx); e != nil {
			rdb.Close()
			return e
		}
		return nil
	}, 5, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()
	deps["redis"] = rdb
	zapLog.Info("Redis connected successfully", zap.String("address", cfg.Database.Redis.Address))

	weights := preferences.NewStore(rdb.Client, time.Duration(cfg.Matching.WeightsCacheTTL)*time.Second)

	// --- Candidate source ---
	var source candidates.Source
	switch cfg.Matching.CandidateSource {
	case config.CandidateSourceElasticsearch:
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var e error
			es, e = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if e != nil {
				return e
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return es.Ping(pingCtx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("failed to connect to Elasticsearch", zap.Error(err))
		}
		deps["elasticsearch"] = es
		source = candidates.NewElasticsearchSource(es.Client, cfg.Database.Elasticsearch.TutorsIndex, cfg.Matching.CandidatePageSize)
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Database.Elasticsearch.TutorsIndex))
	default:
		source = candidates.NewStoreSource(recordStore, cfg.Matching.CandidateViewName, cfg.Matching.CandidatePageSize)
	}

	// --- Deletion orchestrator ---
	opts := []deletion.Option{
		deletion.WithLogger(appLogger),
		deletion.WithFanOut(cfg.Deletion.PreviewFanOutSize),
		deletion.WithPreferenceCleaner(weights),
	}
	if cfg.Deletion.AuditEnabled {
		opts = append(opts, deletion.WithAuditSink(deletion.NewStoreAuditSink(recordStore)))
	}

	var actors confirmuserdeletion.ActorResolver
	if cfg.Auth.Keycloak.URL != "" {
		kc := auth.NewKeycloakClient(cfg.Auth.Keycloak.URL, cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID, cfg.Auth.Keycloak.ClientSecret)
		actors = kc
		if cfg.Deletion.RemoveIdentity {
			opts = append(opts, deletion.WithIdentityRemover(kc))
		}
		zapLog.Info("Keycloak client configured", zap.String("realm", cfg.Auth.Keycloak.Realm))
	}

	awsCfg := cfg.Integrations.AWS
	if awsCfg.SNS.Enabled && cfg.Deletion.EventsTopicARN != "" {
		sns, err := awsclient.NewSNSClient(ctx, awsCfg.Region)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}
		opts = append(opts, deletion.WithEventPublisher(deletion.NewSNSEventPublisher(sns, cfg.Deletion.EventsTopicARN)))
		zapLog.Info("SNS deletion events enabled", zap.String("topic", cfg.Deletion.EventsTopicARN))
	}
	if awsCfg.SES.Enabled && cfg.Deletion.ReceiptFromEmail != "" {
		ses, err := awsclient.NewSESClient(ctx, awsCfg.Region)
		if err != nil {
			zapLog.Fatal("failed to create SES client", zap.Error(err))
		}
		opts = append(opts, deletion.WithReceiptMailer(deletion.NewSESReceiptMailer(ses, cfg.Deletion.ReceiptFromEmail)))
		zapLog.Info("SES deletion receipts enabled")
	}

	orchestrator := deletion.NewOrchestrator(recordStore, opts...)
	if cfg.Deletion.VerifySchema {
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := orchestrator.CheckSchema(schemaCtx)
		cancel()
		if err != nil {
			zapLog.Fatal("database schema check failed", zap.Error(err))
		}
		zapLog.Info("Database schema verified")
	}

	// --- Workers ---
	workers := camunda.NewWorkerSet(zeebe.GetClient(), zapLog)

	workers.Start(scoretutors.TaskType, config.GetWorkerConfig(cfg, scoretutors.TaskType),
		scoretutors.NewHandler(scoretutors.LoadConfig(cfg), source, weights, obs, appLogger).Handle)
	workers.Start(saveweightprofile.TaskType, config.GetWorkerConfig(cfg, saveweightprofile.TaskType),
		saveweightprofile.NewHandler(saveweightprofile.LoadConfig(cfg), weights, obs, appLogger).Handle)
	workers.Start(previewuserdeletion.TaskType, config.GetWorkerConfig(cfg, previewuserdeletion.TaskType),
		previewuserdeletion.NewHandler(previewuserdeletion.LoadConfig(cfg), orchestrator, obs, appLogger).Handle)
	workers.Start(confirmuserdeletion.TaskType, config.GetWorkerConfig(cfg, confirmuserdeletion.TaskType),
		confirmuserdeletion.NewHandler(confirmuserdeletion.LoadConfig(cfg), orchestrator, actors, obs, appLogger).Handle)

	zapLog.Info("Workers registered", zap.Strings("running", workers.Running()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status, code := "ready", http.StatusOK
		checks := map[string]string{}
		for name, dep := range deps {
			if err := dep.Ping(checkCtx); err != nil {
				checks[name] = err.Error()
				status, code = "not_ready", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			checks["zeebe"] = err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["zeebe"] = "ok"
		}

		writeStatus(w, code, map[string]interface{}{
			"status":  status,
			"checks":  checks,
			"workers": workers.Running(),
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
