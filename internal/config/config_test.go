package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MarkWindow != 45*time.Minute {
		t.Fatalf("MarkWindow = %v", cfg.MarkWindow)
	}
	if cfg.LateThreshold != 15*time.Minute {
		t.Fatalf("LateThreshold = %v", cfg.LateThreshold)
	}
	if cfg.OpenBefore != 5*time.Minute {
		t.Fatalf("OpenBefore = %v", cfg.OpenBefore)
	}
	if !cfg.LessonJobsEnabled {
		t.Fatal("LessonJobsEnabled should default to true")
	}
	if cfg.Location == nil {
		t.Fatal("Location not resolved")
	}
}

func TestLoadAdminIDs(t *testing.T) {
	t.Setenv("ADMIN_IDS", " 100, 200 ,300 ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AdminIDs) != 3 {
		t.Fatalf("AdminIDs = %v", cfg.AdminIDs)
	}
	set := cfg.AdminIDSet()
	for _, id := range []int64{100, 200, 300} {
		if _, ok := set[id]; !ok {
			t.Fatalf("missing admin id %d", id)
		}
	}
}

func TestLoadAdminIDsInvalid(t *testing.T) {
	t.Setenv("ADMIN_IDS", "100,abc")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric admin id")
	}
}

func TestDurationMinutesFallback(t *testing.T) {
	t.Setenv("LESSON_MARK_WINDOW_MINUTES", "30")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MarkWindow != 30*time.Minute {
		t.Fatalf("MarkWindow = %v", cfg.MarkWindow)
	}
}

func TestDurationStringForm(t *testing.T) {
	t.Setenv("LESSON_MARK_WINDOW", "1h")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MarkWindow != time.Hour {
		t.Fatalf("MarkWindow = %v", cfg.MarkWindow)
	}
}

func TestInvalidTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
