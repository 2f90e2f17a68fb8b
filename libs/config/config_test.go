package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("PORT", "8090")
	if p, err := Port("PORT", "1"); err != nil || p != "8090" {
		t.Fatalf("unexpected port %q err=%v", p, err)
	}
	t.Setenv("PORT", "99999")
	if _, err := Port("PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("ARCHIVE_AFTER_DAYS", "abc")
	if got := Int("ARCHIVE_AFTER_DAYS", 180); got != 180 {
		t.Fatalf("expected fallback 180, got %d", got)
	}
	t.Setenv("ARCHIVE_AFTER_DAYS", "30")
	if got := Int("ARCHIVE_AFTER_DAYS", 180); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	t.Setenv("ENFORCE_WORKING_HOURS", "yes")
	if !Bool("ENFORCE_WORKING_HOURS", false) {
		t.Fatal("expected true")
	}
	t.Setenv("ENFORCE_WORKING_HOURS", "")
	if Bool("ENFORCE_WORKING_HOURS", false) {
		t.Fatal("expected fallback false")
	}
}

func TestSecondsAndList(t *testing.T) {
	t.Setenv("LOCK_TTL_SECONDS", "15")
	if got := Seconds("LOCK_TTL_SECONDS", time.Minute); got != 15*time.Second {
		t.Fatalf("unexpected duration %s", got)
	}
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	got := List("KAFKA_BROKERS", "")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestLocation(t *testing.T) {
	t.Setenv("SCHEDULING_TIMEZONE", "Not/AZone")
	if _, err := Location("SCHEDULING_TIMEZONE", "UTC"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	t.Setenv("SCHEDULING_TIMEZONE", "")
	loc, err := Location("SCHEDULING_TIMEZONE", "UTC")
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v err=%v", loc, err)
	}
}
