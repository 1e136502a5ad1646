package router

import (
	"testing"

	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/models"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Providers = []config.ProviderConfig{
		{Name: "anthropic-main", Type: "anthropic", URL: "https://api.anthropic.com", DefaultModel: "claude-3-sonnet"},
		{Name: "openai-main", Type: "openai", URL: "https://api.openai.com", DefaultModel: "gpt-4"},
	}
	cfg.Routes = []config.RouteConfig{
		{
			Task: models.TaskCodeGen,
			Targets: []config.RouteTarget{
				{Provider: "anthropic-main", Model: "claude-3-opus"},
				{Provider: "openai-main", Model: "gpt-4"},
			},
		},
	}
	return cfg
}

func TestResolveConfiguredRoute(t *testing.T) {
	r, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	targets, err := r.Resolve(models.TaskCodeGen)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Provider != "anthropic-main" || targets[0].Model != "claude-3-opus" {
		t.Errorf("first target = %s/%s", targets[0].Provider, targets[0].Model)
	}
	if targets[1].Provider != "openai-main" {
		t.Errorf("second target = %s", targets[1].Provider)
	}
	if targets[0].Caller == nil {
		t.Error("expected a constructed caller on the target")
	}
}

func TestResolveFallsBackToFirstProvider(t *testing.T) {
	r, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	targets, err := r.Resolve(models.TaskUserChat)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 fallback target, got %d", len(targets))
	}
	if targets[0].Provider != "anthropic-main" || targets[0].Model != "claude-3-sonnet" {
		t.Errorf("fallback = %s/%s, want first provider with its default model",
			targets[0].Provider, targets[0].Model)
	}
}

func TestNewSkipsUnknownRouteProviders(t *testing.T) {
	cfg := testConfig()
	cfg.Routes[0].Targets = append([]config.RouteTarget{{Provider: "nonexistent", Model: "m"}},
		cfg.Routes[0].Targets...)

	r, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	targets, err := r.Resolve(models.TaskCodeGen)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected unknown provider skipped, got %d targets", len(targets))
	}
}

func TestNewRejectsRouteWithNoKnownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Routes[0].Targets = []config.RouteTarget{{Provider: "nonexistent", Model: "m"}}

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for route whose providers are all unknown")
	}
}

func TestNewRejectsNoProviders(t *testing.T) {
	cfg := config.Default()
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for empty provider list")
	}
}

func TestNewStatic(t *testing.T) {
	fallback := []Target{{Provider: "p", Model: "m"}}
	r := NewStatic(nil, fallback)

	targets, err := r.Resolve(models.TaskSystemOp)
	if err != nil {
		t.Fatal(err)
	}
	if targets[0].Provider != "p" {
		t.Errorf("provider = %s", targets[0].Provider)
	}
}

func TestResolveNoRouteNoFallback(t *testing.T) {
	r := NewStatic(nil, nil)
	if _, err := r.Resolve(models.TaskSystemOp); err == nil {
		t.Fatal("expected error with neither route nor fallback")
	}
}
