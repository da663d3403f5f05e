package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dedup.Bands*cfg.Dedup.Rows != cfg.Dedup.SignatureLength {
		t.Fatalf("default banding inconsistent: %+v", cfg.Dedup)
	}
	if cfg.Dedup.Horizon != 24*time.Hour || cfg.Extraction.PersistThreshold != 40 {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Dedup, cfg.Extraction)
	}
	if cfg.Corroboration.VerifiedMinSources != 2 {
		t.Fatalf("verified min sources = %d; want 2", cfg.Corroboration.VerifiedMinSources)
	}
	if cfg.Redis.Addr != "" || len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("optional backends should default to disabled")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DEDUP_HORIZON", "12h")
	t.Setenv("FEEDS", "iranwire")
	t.Setenv("S3_PREFIX", "/runs/")
	t.Setenv("EXTRACTION_MAX_PER_ARTICLE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Fatalf("addr = %s", cfg.Server.Addr())
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Dedup.Horizon != 12*time.Hour || cfg.Feeds.Presets[0] != "iranwire" || cfg.S3.Prefix != "runs" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Extraction.MaxPerArticle != 3 {
		t.Fatalf("unparsable value should fall back to default, got %d", cfg.Extraction.MaxPerArticle)
	}
}

func TestValidateRejectsBadBanding(t *testing.T) {
	t.Setenv("DEDUP_LSH_BANDS", "10")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "signature length") {
		t.Fatalf("expected banding error, got %v", err)
	}
}

func TestValidateRejectsZeroVerifiedSources(t *testing.T) {
	t.Setenv("CORROBORATION_VERIFIED_MIN_SOURCES", "0")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "verified min sources") {
		t.Fatalf("expected verified sources error, got %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Setenv("CORROBORATION_ALPHA", "1.5")
	t.Setenv("EXTRACTION_MIN_CONFIDENCE", "60")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "alpha") || !strings.Contains(err.Error(), "min confidence") {
		t.Fatalf("expected both errors, got %v", err)
	}
}
