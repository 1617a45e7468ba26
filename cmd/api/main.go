package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/cmd/mainconfig"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/api/router"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/app/bootstrap"
	appconfig "github.com/lucasdmc/atendeai-lify-admin-sub007/internal/config"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/conversation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/http/handlers"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/observability/metrics"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

const (
	webhookRatePerIP = 5.0
	webhookBurst     = 10
)

func main() {
	// Local runs pick up .env; in containers the variables come from the
	// environment and the file is simply absent.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting atendeai API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	db, err := bootstrap.BuildPostgres(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	stateStore := bootstrap.BuildStateStore(redisClient, logger)

	messenger, err := bootstrap.BuildMessenger(cfg, logger)
	if err != nil {
		logger.Error("failed to build whatsapp client", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	convMetrics := metrics.NewConversationMetrics(registry)

	rt, err := bootstrap.BuildRuntime(ctx, cfg, bootstrap.RuntimeDeps{
		DB:         db,
		StateStore: stateStore,
		Messenger:  messenger,
		Metrics:    convMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to assemble booking pipeline", "error", err)
		os.Exit(1)
	}

	// Inbound messages go through the queue so webhook acks stay fast. With
	// the in-memory queue the worker runs inside this process; otherwise a
	// separate worker binary drains SQS.
	var (
		publisher    *conversation.Publisher
		inlineWorker *conversation.Worker
	)
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.UseMemoryQueue {
		queue := conversation.NewMemoryQueue(64)
		publisher = conversation.NewPublisher(queue, logger)
		if messenger != nil {
			inlineWorker = conversation.NewWorker(rt.Engine, queue, messenger, logger,
				conversation.WithWorkerCount(cfg.WorkerCount),
				conversation.WithWorkerMetrics(convMetrics),
			)
			inlineWorker.Start(workerCtx)
		} else {
			logger.Warn("no whatsapp gateway configured, queued messages will not be delivered")
		}
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
		publisher = conversation.NewPublisher(queue, logger)
	}

	webhookHandler := handlers.NewWhatsAppWebhookHandler(publisher, cfg.WebhookToken, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Webhook:            webhookHandler,
		AdminApprovals:     handlers.NewAdminApprovalsHandler(rt.Approvals, logger),
		AdminConversations: handlers.NewAdminConversationsHandler(rt.Engine, rt.Transcript, logger),
		AdminAvailability:  handlers.NewAdminAvailabilityHandler(rt.Rules, rt.Availability, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WebhookRate:        webhookRatePerIP,
		WebhookBurst:       webhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if inlineWorker != nil {
		stopWorker()
		inlineWorker.Wait()
	}

	logger.Info("server stopped")
}
