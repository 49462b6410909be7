package server

import (
	"context"
	"time"

	"promptbench/internal/api"
	"promptbench/internal/catalog"
	"promptbench/internal/report"
)

// ModelCatalog resolves which model ids may be benchmarked
type ModelCatalog interface {
	Names(ctx context.Context) ([]string, error)
	Has(ctx context.Context, model string) (bool, error)
}

// CompletionClient performs plain and streamed completion calls
type CompletionClient interface {
	api.Invoker
	api.Streamer
}

// Services bundles the dependencies the HTTP handlers share
type Services struct {
	Settings Settings
	Catalog  ModelCatalog
	Sink     *report.CSVSink
	Jobs     *JobManager
	Hub      *Hub

	// NewClient builds a completion client per request; a missing API key fails here
	NewClient func() (CompletionClient, error)

	// ProgressInterval throttles websocket progress broadcasts
	ProgressInterval time.Duration
}

// NewServices wires the production dependencies from settings
func NewServices(settings Settings) *Services {
	return &Services{
		Settings: settings,
		Catalog: catalog.New(catalog.Config{
			URL:      settings.ModelsURL,
			FreeOnly: settings.FreeModelsOnly,
			TTL:      settings.ModelCacheTTL,
		}),
		Sink: report.NewCSVSink(settings.ResultsDir),
		Jobs: NewJobManager(),
		Hub:  NewHub(),
		NewClient: func() (CompletionClient, error) {
			client, err := api.NewClient(api.ClientConfig{
				BaseURL: settings.BaseURL,
				APIKey:  settings.APIKey,
			})
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		ProgressInterval: time.Second,
	}
}
