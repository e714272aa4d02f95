package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukasbauer/clio/internal/eventlog"
	"github.com/lukasbauer/clio/internal/httpapi"
	"github.com/lukasbauer/clio/internal/llm"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	eventLog *eventlog.Logger
	llm      llm.Client
	sessions *httpapi.SessionTable
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open diagnostics db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping diagnostics db: %w", err)
		}
		db = pool
	} else {
		logger.Printf("DATABASE_URL not set, session diagnostics disabled")
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		eventLog: eventlog.New(db),
		llm:      client,
		sessions: httpapi.NewSessionTable(),
	}, nil
}

func newLLMClient(cfg Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "groq":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		return llm.NewGroqClient(llm.GroqConfig{
			APIKey:      cfg.GroqAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.MaxCompletionTokens,
			Temperature: cfg.LLMTemperature,
		}), nil

	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.MaxCompletionTokens,
			Temperature: cfg.LLMTemperature,
		}), nil

	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		GreetingText: a.cfg.GreetingText,
		MaxTurns:     a.cfg.MaxTurns,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.llm, a.eventLog, a.sessions)
}

func (a *App) Sessions() *httpapi.SessionTable {
	return a.sessions
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
