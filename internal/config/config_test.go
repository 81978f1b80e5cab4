package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Data.CSVPath() != "./data/transactions.csv" {
		t.Errorf("unexpected csv path %s", cfg.Data.CSVPath())
	}
	if cfg.Model.Timeout() != 15*time.Second {
		t.Errorf("expected 15s model timeout, got %v", cfg.Model.Timeout())
	}
	if cfg.Analytics.Segmentation.Customer.High != "total > 800" {
		t.Errorf("unexpected customer high band %q", cfg.Analytics.Segmentation.Customer.High)
	}
	if cfg.Analytics.Segmentation.Merchant.Mid != "total > 5000" {
		t.Errorf("unexpected merchant mid band %q", cfg.Analytics.Segmentation.Merchant.Mid)
	}
	if cfg.Analytics.OutlierStdMultiplier != 1.0 {
		t.Errorf("expected outlier multiplier 1.0, got %v", cfg.Analytics.OutlierStdMultiplier)
	}
}

func TestModelAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.Model.APIKey)
	}
}
