package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/cmd/mainconfig"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/app/bootstrap"
	appconfig "github.com/lucasdmc/atendeai-lify-admin-sub007/internal/config"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/conversation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting atendeai conversation worker", "env", cfg.Env)

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
	if messenger == nil {
		logger.Error("WHATSAPP_BASE_URL is required for the worker")
		os.Exit(1)
	}

	rt, err := bootstrap.BuildRuntime(ctx, cfg, bootstrap.RuntimeDeps{
		DB:         db,
		StateStore: stateStore,
		Messenger:  messenger,
	}, logger)
	if err != nil {
		logger.Error("failed to assemble booking pipeline", "error", err)
		os.Exit(1)
	}

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.ConversationQueueURL)
	worker := conversation.NewWorker(
		rt.Engine,
		queue,
		messenger,
		logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	worker.Start(runCtx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}
