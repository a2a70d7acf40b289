package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"deck-backend/internal/capability"
	"deck-backend/internal/evaluator"
	"deck-backend/internal/shared/config"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                  "dev",
		ObjectStoreType:      "local",
		LocalStoreDir:        t.TempDir(),
		VLMProvider:          "none",
		RefineMaxIterations:  2,
		RefineScoreThreshold: 7,
		RenderDPI:            72,
		RenderWorkers:        2,
		EvalConcurrency:      2,
		DefaultAutonomy:      "autonomous",
	}
}

func TestBuildDevWithoutOptionalBackends(t *testing.T) {
	app, err := Build(devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	if app.DB != nil {
		t.Fatalf("expected in-memory repositories without DATABASE_URL")
	}
	if app.Capabilities.Has(capability.Evaluator) || app.Capabilities.Has(capability.Database) {
		t.Fatalf("unexpected capabilities: %+v", app.Capabilities.List())
	}
	if !app.Capabilities.Has(capability.ObjectStore) {
		t.Fatalf("local store should be available")
	}
	if _, ok := app.Evaluator.(evaluator.Placeholder); !ok {
		t.Fatalf("expected placeholder evaluator, got %T", app.Evaluator)
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildEvaluator(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"disabled", config.Config{VLMProvider: "none"}, true},
		{"missing key", config.Config{VLMProvider: "openai"}, true},
		{"configured", config.Config{VLMProvider: "openai", OpenAIAPIKey: "sk-test", VLMModel: "gpt-4o-mini"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := buildEvaluator(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				if _, ferr := ev.EvaluateRefinement(context.Background(), 0, nil); !errors.Is(ferr, evaluator.ErrNotConfigured) {
					t.Fatalf("expected placeholder, got %v", ferr)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildEvaluator: %v", err)
			}
			if _, ok := ev.(evaluator.Retrying); !ok {
				t.Fatalf("expected retrying evaluator, got %T", ev)
			}
		})
	}
}
