package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"shopping-assistant/handler"
	"shopping-assistant/internal/config"
	"shopping-assistant/internal/integrations/openai"
	"shopping-assistant/internal/integrations/paramstore"
	"shopping-assistant/internal/integrations/simulator"
	"shopping-assistant/internal/metrics"
	"shopping-assistant/internal/observability"
	"shopping-assistant/internal/repository"
	"shopping-assistant/internal/usecase"
)

type app struct {
	cfg     config.Config
	handler *handler.Handler
	metrics *metrics.Exporter
	closers []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
}

// awsClients loads the AWS SDK config once, only when a component needs it.
type awsClients struct {
	loaded bool
	dynamo *awsdynamodb.Client
	params *paramstore.Client
}

func (c *awsClients) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("create SSM client: %w", err)
	}
	c.dynamo = awsdynamodb.NewFromConfig(cfg)
	c.params = ps
	c.loaded = true
	return nil
}

func build(ctx context.Context, cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := observability.Logger()
	a := &app{cfg: cfg, metrics: metrics.NewExporter(metrics.DefaultConfig())}
	aws := &awsClients{}

	backend, err := openBackend(ctx, cfg, aws, a)
	if err != nil {
		return nil, err
	}
	store, err := repository.New(backend)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create record store: %w", err)
	}

	reasoning, assistants, err := openReasoning(ctx, cfg, aws)
	if err != nil {
		a.close()
		return nil, err
	}

	runner, err := usecase.NewRunner(reasoning, usecase.RunnerOptions{
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.RunTimeout,
		Observer:     a.metrics,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	merger, err := usecase.NewPreferenceMerger(store.Preferences())
	if err != nil {
		a.close()
		return nil, err
	}
	orchestrator, err := usecase.NewOrchestrator(reasoning, runner, assistants.chat)
	if err != nil {
		a.close()
		return nil, err
	}
	describer, err := usecase.NewDescriptionAgent(store, reasoning, runner, assistants.description)
	if err != nil {
		a.close()
		return nil, err
	}
	comparer, err := usecase.NewComparisonAgent(store, reasoning, runner, assistants.comparison)
	if err != nil {
		a.close()
		return nil, err
	}
	extractor, err := usecase.NewExtractionPipeline(store, reasoning, merger)
	if err != nil {
		a.close()
		return nil, err
	}
	svc, err := usecase.NewService(usecase.ServiceDeps{
		Store:        store,
		Merger:       merger,
		Orchestrator: orchestrator,
		Describer:    describer,
		Comparer:     comparer,
		Extractor:    extractor,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.handler, err = handler.NewHandler(svc, handler.WithRequestObserver(a.metrics))
	if err != nil {
		a.close()
		return nil, err
	}
	log.Info("shopping assistant ready",
		"driver", cfg.Driver, "mock_llm", cfg.MockLLM,
		"poll_interval", cfg.PollInterval, "run_timeout", cfg.RunTimeout)
	return a, nil
}

func openBackend(ctx context.Context, cfg config.Config, aws *awsClients, a *app) (repository.Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		b, err := repository.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	case config.DriverDynamoDB:
		if err := aws.load(ctx); err != nil {
			return nil, err
		}
		b, err := repository.NewDynamoBackend(aws.dynamo, cfg.DynamoTable)
		if err != nil {
			return nil, fmt.Errorf("create dynamodb backend: %w", err)
		}
		return b, nil
	default:
		return repository.NewMemoryBackend(), nil
	}
}

type assistantIDs struct {
	chat        string
	description string
	comparison  string
}

func openReasoning(ctx context.Context, cfg config.Config, aws *awsClients) (usecase.ReasoningService, assistantIDs, error) {
	ids := assistantIDs{
		chat:        cfg.ChatAssistantID,
		description: cfg.DescriptionAssistantID,
		comparison:  cfg.ComparisonAssistantID,
	}
	if cfg.MockLLM {
		ids.fill("sim_chat", "sim_description", "sim_comparison")
		return simulator.New(), ids, nil
	}

	opts := []openai.Option{openai.WithExtractionModel(cfg.ExtractionModel)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.OpenAIAPIKey != "" {
		opts = append(opts, openai.WithAPIKey(cfg.OpenAIAPIKey))
	}
	if cfg.ParamPrefix != "" {
		if err := aws.load(ctx); err != nil {
			return nil, ids, err
		}
		opts = append(opts, openai.WithParamStore(aws.params, cfg.ParamPrefix))
		if err := resolveAssistantIDs(ctx, aws.params, cfg.ParamPrefix, &ids); err != nil {
			return nil, ids, err
		}
	}

	client, err := openai.NewClient(opts...)
	if err != nil {
		return nil, ids, fmt.Errorf("create OpenAI client: %w", err)
	}
	return client, ids, nil
}

// resolveAssistantIDs reads <prefix>/assistants/<name> for every id left
// unset by flags or environment.
func resolveAssistantIDs(ctx context.Context, ps *paramstore.Client, prefix string, ids *assistantIDs) error {
	prefix = strings.TrimRight(prefix, "/")
	for name, dst := range map[string]*string{
		"chat":        &ids.chat,
		"description": &ids.description,
		"comparison":  &ids.comparison,
	} {
		if *dst != "" {
			continue
		}
		param := prefix + "/assistants/" + name
		v, ok, err := ps.Lookup(ctx, param)
		if err != nil {
			return fmt.Errorf("read %s: %w", param, err)
		}
		if !ok {
			return fmt.Errorf("assistant id %q is not configured and %s does not exist", name, param)
		}
		*dst = v
	}
	return nil
}

func (ids *assistantIDs) fill(chat, description, comparison string) {
	if ids.chat == "" {
		ids.chat = chat
	}
	if ids.description == "" {
		ids.description = description
	}
	if ids.comparison == "" {
		ids.comparison = comparison
	}
}
