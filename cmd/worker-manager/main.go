// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobboard-workers/internal/alerts"
	"jobboard-workers/internal/api"
	"jobboard-workers/internal/common/auth"
	awsclients "jobboard-workers/internal/common/aws"
	"jobboard-workers/internal/common/camunda"
	"jobboard-workers/internal/common/config"
	"jobboard-workers/internal/common/database"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/observability"
	"jobboard-workers/internal/notify"
	"jobboard-workers/internal/status"
	"jobboard-workers/internal/tracking"
	"jobboard-workers/pkg/registry"

	dda "jobboard-workers/internal/workers/alerts/dispatch-due-alerts"
	ssn "jobboard-workers/internal/workers/notification/send-status-notification"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// pingFunc adapts a health check to api.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("queueDriver", cfg.Notifications.Queue.Driver),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := map[string]api.Pinger{}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	ready["postgres"] = pg
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pg.GetDB()); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("Schema migrated")
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	ready["redis"] = rdb
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	if cfg.Alerts.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		ready["elasticsearch"] = esClient
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		ready["zeebe"] = pingFunc(zeebe.HealthCheck)
		zapLog.Info("Zeebe client connected successfully")
	}

	// --- Notification pipeline ---
	qcfg := cfg.Notifications.Queue
	var queue notify.Queue
	var redisQueue *notify.RedisQueue
	switch qcfg.Driver {
	case config.QueueDriverCamunda:
		if zeebe == nil {
			zapLog.Fatal("camunda queue driver requires camunda.enabled")
		}
		queue = notify.NewCamundaQueue(zeebe, qcfg.ProcessID)
	default:
		redisQueue = notify.NewRedisQueue(rdb.GetClient(), qcfg.Key, qcfg.DeadLetterKey)
		queue = redisQueue
	}
	dispatcher := notify.NewDispatcher(queue, qcfg.Driver, config.GetDuration(qcfg.PublishTimeout), log)

	templates, err := registry.LoadRegistry(cfg.Notifications.RegistryPath)
	if err != nil {
		zapLog.Fatal("template registry load failed", zap.Error(err))
	}

	awsCfg, err := awsclients.LoadConfig(ctx, cfg.Notifications.AWS.Region, 3)
	if err != nil {
		zapLog.Fatal("aws config load failed", zap.Error(err))
	}

	contacts := notify.NewContactStore(
		pg.GetDB(), rdb.GetClient(),
		time.Duration(cfg.Notifications.ContactCacheTTL)*time.Second, log,
	)
	deliverer := notify.NewDeliverer(notify.DeliveryConfig{
		EmailEnabled: cfg.Notifications.Email.Enabled,
		FromEmail:    cfg.Notifications.Email.FromEmail,
		SMSEnabled:   cfg.Notifications.SMS.Enabled,
		SMSStatuses:  cfg.Notifications.SMS.Statuses,
		SMSSenderID:  cfg.Notifications.SMS.SenderID,
	}, pg.GetDB(), contacts, templates,
		awsclients.NewSESClient(awsCfg), awsclients.NewSNSClient(awsCfg), log)

	// --- Status tracking ---
	trackingSvc := tracking.NewService(pg.GetDB(), dispatcher, log,
		tracking.WithObservability(obs),
		tracking.WithPolicy(status.Policy{Enforce: cfg.Status.EnforceTransitions}),
	)

	// --- Job alerts ---
	var runner *alerts.Runner
	if cfg.Alerts.Enabled {
		runner = alerts.NewRunner(
			alerts.NewStore(pg.GetDB()),
			alerts.NewESSearcher(esClient.Client, cfg.Database.Elasticsearch.JobsIndex),
			dispatcher,
			alerts.RunnerConfig{MaxMatches: cfg.Alerts.MaxMatches},
			log,
		)
	}

	// --- Camunda workers ---
	var workers *camunda.Group
	if zeebe != nil {
		workers = camunda.NewGroup(zeebe.GetClient(), log)
		wcfg := config.GetWorkerConfig(cfg, ssn.TaskType)
		workers.Open(ssn.TaskType, wcfg, ssn.NewHandler(ssn.LoadConfig(wcfg), deliverer, obs, log))
		if runner != nil {
			wcfg := config.GetWorkerConfig(cfg, dda.TaskType)
			workers.Open(dda.TaskType, wcfg, dda.NewHandler(dda.LoadConfig(wcfg), runner, log))
		}
		zapLog.Info("Camunda workers registered", zap.Int("count", workers.Len()))
	}

	// --- HTTP API ---
	deps := api.Deps{
		Tracking:      trackingSvc,
		Inbox:         notify.NewInbox(pg.GetDB()),
		RequiredScope: cfg.Auth.RequiredScope,
		Ready:         ready,
		Logger:        log,
	}
	if cfg.Auth.Enabled {
		deps.Validator = auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
			auth.WithCacheTTL(time.Duration(cfg.Auth.Keycloak.CacheTTL)*time.Second),
		)
	} else {
		zapLog.Warn("auth disabled, callers are identified by X-User-ID")
	}
	// In-flight requests outlive the signal and are drained by Shutdown.
	server := api.NewServer(context.Background(), cfg.HTTP, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if redisQueue != nil {
		consumer := notify.NewConsumer(redisQueue, deliverer, notify.ConsumerConfig{
			Workers:     qcfg.ConsumerWorkers,
			PopTimeout:  config.GetDuration(qcfg.PopTimeout),
			MaxAttempts: qcfg.MaxAttempts,
		}, log)
		g.Go(func() error {
			consumer.Run(gctx)
			return nil
		})
	}

	// With camunda enabled a BPMN timer drives dispatch-due-alerts instead.
	if runner != nil && (zeebe == nil || !config.IsWorkerEnabled(cfg, dda.TaskType)) {
		scheduler := alerts.NewScheduler(runner, time.Duration(cfg.Alerts.Interval)*time.Second, log)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	zapLog.Info("Worker manager started")

	// --- Graceful Shutdown ---
	if err := g.Wait(); err != nil {
		zapLog.Error("worker manager stopped with error", zap.Error(err))
	}
	zapLog.Info("Shutdown signal received, stopping workers...")

	if workers != nil {
		workers.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
