package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"site-assistant/handler"
	"site-assistant/internal/agents"
	"site-assistant/internal/config"
	"site-assistant/internal/domain"
	"site-assistant/internal/integrations/openai"
	"site-assistant/internal/integrations/paramstore"
	"site-assistant/internal/metrics"
	"site-assistant/internal/repository"
	"site-assistant/internal/usecase"
)

const apiKeyParameter = "open-ai-token"

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *metrics.Recorder
	chat     *usecase.ChatService
	handler  *handler.Handler
}

type tokenSource interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// newApp builds the object graph once per process. Configuration is read
// only here.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	var tokens tokenSource
	if cfg.OpenAI.APIKey == "" && cfg.ParamPrefix != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		store, err := paramstore.New(awsssm.NewFromConfig(c))
		if err != nil {
			return nil, err
		}
		tokens = store
	}
	apiKey, err := resolveAPIKey(ctx, cfg.OpenAI.APIKey, cfg.ParamPrefix, tokens)
	if err != nil {
		return nil, err
	}

	llm, err := openai.NewClient(apiKey, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	if err != nil {
		return nil, err
	}

	table, err := agents.LoadFile(cfg.ProfilesPath, agents.Defaults{
		Classifier: domain.ModelSettings{Model: cfg.OpenAI.ClassifierModel, MaxTokens: cfg.OpenAI.MaxTokens},
		Agent: domain.ModelSettings{
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()
	opts := usecase.Options{
		ClassifierTimeout: cfg.ClassifierTimeout,
		ResponderTimeout:  cfg.ResponderTimeout,
		MaxMessageLength:  cfg.MaxMessageLength,
		Observer:          recorder,
		Logger:            logger,
	}
	if cfg.InteractionTable != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		interactions, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.InteractionTable)
		if err != nil {
			return nil, err
		}
		opts.Interactions = interactions
	}

	chat, err := usecase.NewChatService(llm, table, opts)
	if err != nil {
		return nil, err
	}
	h, err := handler.NewHandler(chat, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("site assistant configured",
		zap.String("model", cfg.OpenAI.Model),
		zap.String("classifier_model", table.Classifier().Settings.Model),
		zap.Int("profiles", len(table.Profiles())),
		zap.Bool("interaction_log", cfg.InteractionTable != ""),
	)
	return &app{cfg: cfg, logger: logger, recorder: recorder, chat: chat, handler: h}, nil
}

// resolveAPIKey prefers an explicit key and otherwise reads
// <prefix>/open-ai-token from the parameter store.
func resolveAPIKey(ctx context.Context, key, prefix string, tokens tokenSource) (string, error) {
	if key = strings.TrimSpace(key); key != "" {
		return key, nil
	}
	if strings.TrimSpace(prefix) == "" || tokens == nil {
		return "", errors.New("OpenAI API key is not configured: set OPENAI_API_KEY or PARAM_PREFIX")
	}
	token, err := tokens.GetToken(ctx, paramstore.TokenName(prefix, apiKeyParameter))
	if err != nil {
		return "", fmt.Errorf("resolve OpenAI API key: %w", err)
	}
	return token, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = cfg.Encoding
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zc.Build()
}
