package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadLedgerDefaults(t *testing.T) {
	t.Setenv("POINTS_DIVISOR", "")
	t.Setenv("OPENING_CASH", "")
	t.Setenv("STRICT_STOCK", "")

	cfg := Load()
	if cfg.PointsDivisor != 10 {
		t.Fatalf("expected default points divisor 10, got %d", cfg.PointsDivisor)
	}
	if cfg.OpeningCash.StringFixed(2) != "200.00" {
		t.Fatalf("expected default opening cash 200.00, got %s", cfg.OpeningCash)
	}
	if cfg.StrictStock {
		t.Fatal("expected strict stock to default off")
	}
}

func TestLoadRejectsNegativeOpeningCash(t *testing.T) {
	t.Setenv("OPENING_CASH", "-50.00")

	cfg := Load()
	if cfg.OpeningCash.IsNegative() {
		t.Fatalf("expected negative opening cash to fall back, got %s", cfg.OpeningCash)
	}
}

func TestLoadStrictStockFlag(t *testing.T) {
	t.Setenv("STRICT_STOCK", "TRUE")

	cfg := Load()
	if !cfg.StrictStock {
		t.Fatal("expected STRICT_STOCK=TRUE to enable strict stock")
	}
}
