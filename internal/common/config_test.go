package common

import (
	"testing"
	"time"
)

func TestConfig_DefaultPort(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("FUNDHUB_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_StorageEnvOverrides(t *testing.T) {
	t.Setenv("FUNDHUB_SURREALDB_ADDRESS", "ws://db:8000/rpc")
	t.Setenv("FUNDHUB_SURREALDB_NAMESPACE", "prod")
	t.Setenv("FUNDHUB_SURREALDB_DATABASE", "funds")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Storage.Address != "ws://db:8000/rpc" {
		t.Errorf("Storage.Address = %q, want %q", cfg.Storage.Address, "ws://db:8000/rpc")
	}
	if cfg.Storage.Namespace != "prod" {
		t.Errorf("Storage.Namespace = %q, want %q", cfg.Storage.Namespace, "prod")
	}
	if cfg.Storage.Database != "funds" {
		t.Errorf("Storage.Database = %q, want %q", cfg.Storage.Database, "funds")
	}
}

func TestConfig_GeminiKeyEnvOverride(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem-from-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Clients.Gemini.APIKey != "gem-from-env" {
		t.Errorf("Gemini.APIKey = %q, want %q", cfg.Clients.Gemini.APIKey, "gem-from-env")
	}
}

func TestConfig_WorkerConcurrencyDefault(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Jobs.WorkerConcurrency != 5 {
		t.Errorf("Jobs.WorkerConcurrency default = %d, want 5", cfg.Jobs.WorkerConcurrency)
	}
}

func TestConfig_WorkerConcurrencyEnvOverride(t *testing.T) {
	t.Setenv("FUNDHUB_WORKER_CONCURRENCY", "8")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Jobs.WorkerConcurrency != 8 {
		t.Errorf("Jobs.WorkerConcurrency = %d after env override, want 8", cfg.Jobs.WorkerConcurrency)
	}
}

func TestJobsConfig_GetLeaseTTL_Default(t *testing.T) {
	cfg := &JobsConfig{}
	if d := cfg.GetLeaseTTL(); d != 90*time.Second {
		t.Errorf("GetLeaseTTL() = %v, want 90s", d)
	}
}

func TestJobsConfig_GetLeaseTTL_Configured(t *testing.T) {
	cfg := &JobsConfig{LeaseTTL: "2m"}
	if d := cfg.GetLeaseTTL(); d != 2*time.Minute {
		t.Errorf("GetLeaseTTL() = %v, want 2m", d)
	}
}

func TestJobsConfig_GetHeartbeatInterval_InvalidFallsBack(t *testing.T) {
	cfg := &JobsConfig{HeartbeatInterval: "not-a-duration"}
	if d := cfg.GetHeartbeatInterval(); d != 30*time.Second {
		t.Errorf("GetHeartbeatInterval() = %v, want 30s (fallback for invalid)", d)
	}
}

func TestJobsConfig_GetRecoveryInterval_Default(t *testing.T) {
	cfg := &JobsConfig{}
	if d := cfg.GetRecoveryInterval(); d != 60*time.Second {
		t.Errorf("GetRecoveryInterval() = %v, want 60s", d)
	}
}

func TestHoldingsConfig_GetFreshnessTTL_Default(t *testing.T) {
	cfg := &HoldingsConfig{}
	if d := cfg.GetFreshnessTTL(); d != 24*time.Hour {
		t.Errorf("GetFreshnessTTL() = %v, want 24h", d)
	}
}

func TestMoneycontrolConfig_GetMinInterval_Default(t *testing.T) {
	cfg := &MoneycontrolConfig{}
	if d := cfg.GetMinInterval(); d != time.Second {
		t.Errorf("GetMinInterval() = %v, want 1s", d)
	}
}

func TestLoadConfig_ClampsConcurrency(t *testing.T) {
	t.Setenv("FUNDHUB_WORKER_CONCURRENCY", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Jobs.WorkerConcurrency != 1 {
		t.Errorf("Jobs.WorkerConcurrency = %d, want 1 (clamped)", cfg.Jobs.WorkerConcurrency)
	}
}
