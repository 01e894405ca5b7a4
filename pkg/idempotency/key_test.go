package idempotency

import (
	"testing"
	"time"
)

func TestGenerateKeyDeterministic(t *testing.T) {
	ts := time.Date(2024, 11, 20, 9, 30, 0, 0, time.UTC)
	a := GenerateKey("Amoxicillin", "Amoxil", "500mg", ts)
	b := GenerateKey("Amoxicillin", "Amoxil", "500mg", ts)
	if a != b {
		t.Error("same inputs must produce the same key")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256 key, got %d chars", len(a))
	}
}

func TestGenerateKeyTruncatesToDay(t *testing.T) {
	morning := time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 11, 20, 22, 45, 0, 0, time.UTC)
	nextDay := time.Date(2024, 11, 21, 8, 0, 0, 0, time.UTC)

	if GenerateKey("Amoxicillin", "Amoxil", "500mg", morning) != GenerateKey("Amoxicillin", "Amoxil", "500mg", evening) {
		t.Error("requests within one day must share a key")
	}
	if GenerateKey("Amoxicillin", "Amoxil", "500mg", morning) == GenerateKey("Amoxicillin", "Amoxil", "500mg", nextDay) {
		t.Error("requests on different days must not share a key")
	}
}

func TestGenerateKeyDistinguishesProfiles(t *testing.T) {
	ts := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
	if GenerateKey("Amoxicillin", "Amoxil", "500mg", ts) == GenerateKey("Amoxicillin", "Amoxil", "250mg", ts) {
		t.Error("strength must contribute to the key")
	}
}
