package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("BOOTSTRAP_MANAGER_PASSWORD", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.BootstrapManagerSecret != "" {
		t.Fatalf("expected empty BOOTSTRAP_MANAGER_PASSWORD when unset, got %q", cfg.BootstrapManagerSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("SALE_IDEMPOTENCY_TTL_MINUTES", "")

	cfg := Load()
	if cfg.Port != "4000" {
		t.Fatalf("expected default port 4000, got %q", cfg.Port)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.IdempotencyTTLMinutes != 1440 {
		t.Fatalf("expected default idempotency TTL 1440, got %d", cfg.IdempotencyTTLMinutes)
	}
	if cfg.Address() != ":4000" {
		t.Fatalf("expected address :4000, got %q", cfg.Address())
	}
}

func TestLoadRejectsBogusTTL(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-3")

	cfg := Load()
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback TTL 480 for negative input, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestLoadLowercasesBootstrapUsername(t *testing.T) {
	t.Setenv("BOOTSTRAP_MANAGER_USERNAME", "  Patron ")

	cfg := Load()
	if cfg.BootstrapManagerUser != "patron" {
		t.Fatalf("expected trimmed lowercase username, got %q", cfg.BootstrapManagerUser)
	}
}
