// Package app wires the configured clients, store and aggregators together
// for the server and the command line tools.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/david/assembly-tracker/internal/aggregate"
	"github.com/david/assembly-tracker/internal/ai"
	"github.com/david/assembly-tracker/internal/assembly"
	"github.com/david/assembly-tracker/internal/cache"
	"github.com/david/assembly-tracker/internal/config"
	"github.com/david/assembly-tracker/internal/crawl"
	"github.com/david/assembly-tracker/internal/db"
	"github.com/david/assembly-tracker/internal/enrich"
	"github.com/david/assembly-tracker/internal/models"
	"github.com/david/assembly-tracker/internal/refresh"
)

type App struct {
	Config   *config.Config
	Store    db.Store
	Cache    *cache.Memory
	Enricher *enrich.Enricher
	Bills    *aggregate.BillAggregator
	Votes    *aggregate.VoteAggregator
	Retrier  *enrich.SummaryRetrier
}

// New opens the store and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := db.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	summarizer, err := NewSummarizer(cfg.Summarizer)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := cfg.Assembly
	openAPI := assembly.NewOpenAPIClient(assembly.OpenAPIOptions{
		BaseURL:         a.OpenAPIBaseURL,
		APIKey:          a.APIKey,
		Age:             a.Age,
		BillPageSize:    a.BillPageSize,
		SessionPageSize: a.SessionPageSize,
		RateLimitRPS:    a.RateLimitRPS,
		Timeout:         a.Timeout,
	})
	portal := &assembly.PortalClient{
		BaseURL:    a.PortalBaseURL,
		MemberCode: cfg.Member.Code,
		Age:        a.Age,
		RowSize:    a.PortalRowSize,
		Represent:  a.PortalRepresent,
		Timeout:    a.Timeout,
	}

	fetcher := crawl.NewCollyFetcher(a.RateLimitRPS)
	if a.Timeout > 0 {
		fetcher.RequestTimeout = a.Timeout
	}

	memory := cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.DetailTTL)
	enricher := &enrich.Enricher{
		Fetcher:     fetcher,
		Summarizer:  summarizer,
		Cache:       memory,
		DetailURL:   a.DetailURL,
		MaxAttempts: cfg.Summarizer.MaxAttempts,
		BaseDelay:   cfg.Summarizer.BaseDelay,
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Cache:    memory,
		Enricher: enricher,
		Bills: &aggregate.BillAggregator{
			Primary:  openAPI,
			Collab:   portal,
			Enricher: enricher,
			Store:    store,
		},
		Votes: &aggregate.VoteAggregator{
			Source:      openAPI,
			Enricher:    enricher,
			Store:       store,
			Concurrency: a.VoteConcurrency,
		},
		Retrier: &enrich.SummaryRetrier{Store: store, Enricher: enricher},
	}, nil
}

// NewSummarizer picks the summarization backend named by cfg.Provider.
func NewSummarizer(cfg config.SummarizerConfig) (ai.Summarizer, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" {
			log.Print("[App] ⚠️ OPENAI_API_KEY is not set; summaries will fail")
		}
		return ai.NewOpenAIClient(ai.OpenAIOptions{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxChars:    cfg.MaxChars,
			Timeout:     cfg.Timeout,
		}), nil
	case "ollama":
		return ai.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel, cfg.Temperature, cfg.MaxChars), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}

// Aggregate runs the aggregation behind one dataset.
func (a *App) Aggregate(ctx context.Context, dataset, member string) (any, error) {
	switch dataset {
	case models.DatasetBills:
		return a.Bills.AggregateBills(ctx, member)
	case models.DatasetVotes:
		return a.Votes.AggregateVotes(ctx, member)
	default:
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}
}

// Scheduler registers both datasets on a scheduler sharing the app cache.
func (a *App) Scheduler() (*refresh.Scheduler, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	s := &refresh.Scheduler{
		Cache:          a.Cache,
		Policy:         refresh.DailyHourPolicy{Hour: a.Config.Refresh.Hour},
		Clock:          refresh.ZoneClock{Location: loc},
		DefaultMember:  a.Config.Member.Name,
		RefreshTimeout: a.Config.Refresh.Timeout,
	}
	for _, name := range []string{models.DatasetBills, models.DatasetVotes} {
		s.Register(name, func(ctx context.Context, member string) (any, error) {
			return a.Aggregate(ctx, name, member)
		})
	}
	return s, nil
}

func (a *App) Close() {
	a.Store.Close()
}
