package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENV", "OBJECT_STORE", "VLM_PROVIDER", "REFINE_MAX_ITERATIONS",
		"REFINE_SCORE_THRESHOLD", "RENDER_DPI", "RENDER_WORKERS", "EVAL_CONCURRENCY", "DEFAULT_AUTONOMY",
	} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.Env != "dev" || cfg.ObjectStoreType != "local" {
		t.Fatalf("unexpected basics: %+v", cfg)
	}
	if cfg.VLMProvider != "openai" {
		t.Fatalf("expected openai provider, got %s", cfg.VLMProvider)
	}
	if cfg.RefineMaxIterations != 2 || cfg.RefineScoreThreshold != 7.0 {
		t.Fatalf("unexpected refinement defaults: %d %v", cfg.RefineMaxIterations, cfg.RefineScoreThreshold)
	}
	if cfg.RenderDPI != 150 || cfg.RenderWorkers != 4 || cfg.EvalConcurrency != 4 {
		t.Fatalf("unexpected worker defaults: %+v", cfg)
	}
	if cfg.DefaultAutonomy != "semi_supervised" {
		t.Fatalf("unexpected autonomy %s", cfg.DefaultAutonomy)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("VLM_PROVIDER", "bogus")
	t.Setenv("REFINE_MAX_ITERATIONS", "5")
	t.Setenv("RENDER_DPI", "not-a-number")
	t.Setenv("EVAL_CONCURRENCY", "-3")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DATABASE_URL", "postgres://localhost/deck")

	cfg := Load()
	if cfg.Env != "production" || cfg.ObjectStoreType != "s3" {
		t.Fatalf("unexpected env/store: %s %s", cfg.Env, cfg.ObjectStoreType)
	}
	if cfg.VLMProvider != "none" {
		t.Fatalf("unknown provider should normalize to none, got %s", cfg.VLMProvider)
	}
	if cfg.RefineMaxIterations != 5 {
		t.Fatalf("expected 5 iterations, got %d", cfg.RefineMaxIterations)
	}
	if cfg.RenderDPI != 150 || cfg.EvalConcurrency != 4 {
		t.Fatalf("invalid values should fall back: dpi=%v conc=%d", cfg.RenderDPI, cfg.EvalConcurrency)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowOrigin)
	}
}
