package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"hint-agent/handler"
	"hint-agent/internal/app"
	"hint-agent/internal/config"
	"hint-agent/internal/integrations/paramstore"
	"hint-agent/internal/logging"
	"hint-agent/internal/repository"
	"hint-agent/internal/session"
	"hint-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fatal("invalid environment", err)
	}
	mustSet("STATE_TABLE", cfg.StateTable)
	mustSet("PARAM_PREFIX", cfg.ParamPrefix)

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		fatal("failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Fatal("failed to create SSM client", zap.Error(err))
	}
	if err := cfg.ApplyParams(ctx, ssmClient); err != nil {
		logger.Fatal("failed to load remote config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		logger.Fatal("failed to create state client", zap.Error(err))
	}
	sessions := session.New(cfg.MaxSessions, session.WithBackend(stateClient), session.WithLogger(logger))

	gen, err := app.NewGenerator(cfg, paramstore.TokenKey(ssmClient, cfg.TokenParam()))
	if err != nil {
		logger.Fatal("failed to create generation client", zap.Error(err))
	}
	retriever, closeRetriever, err := app.NewRetriever(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create retriever", zap.Error(err))
	}
	defer func() { _ = closeRetriever() }()

	// ---- Handler ----
	opts := cfg.ServiceOptions()
	opts.Logger = logger
	svc, err := usecase.NewHintService(gen, retriever, sessions, opts)
	if err != nil {
		logger.Fatal("failed to create hint service", zap.Error(err))
	}

	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}

	logger.Info("hint agent ready",
		zap.String("provider", cfg.Provider),
		zap.Int("max_sessions", cfg.MaxSessions),
	)
	lambda.Start(h.Handle)
}

func mustSet(key, value string) {
	if value == "" {
		fatal("required environment variable is not set", fmt.Errorf("%s is empty", key))
	}
}

// fatal is used before the zap logger exists.
func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
