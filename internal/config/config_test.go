package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RetailerAddress != "customerservices@ocado.com" {
		t.Fatalf("retailer=%s", cfg.RetailerAddress)
	}
	if cfg.IMAPHost != "imap.gmail.com" || cfg.IMAPPort != 993 || !cfg.IMAPSecure {
		t.Fatalf("imap defaults: %s:%d secure=%v", cfg.IMAPHost, cfg.IMAPPort, cfg.IMAPSecure)
	}
	if cfg.LookbackDays != 31 {
		t.Fatalf("lookback=%d", cfg.LookbackDays)
	}
}

func TestLoadClampsLookback(t *testing.T) {
	t.Setenv("LOOKBACK_DAYS", "2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LookbackDays != MinLookbackDays {
		t.Fatalf("lookback=%d", cfg.LookbackDays)
	}
}

func TestRequire(t *testing.T) {
	var cfg Config
	if err := cfg.Require("IMAP_USER", ""); err == nil {
		t.Fatal("expected error")
	}
	if err := cfg.Require("IMAP_USER", "someone"); err != nil {
		t.Fatalf("err=%v", err)
	}
}
