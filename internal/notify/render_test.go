package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/antoniofrancaib/alan/internal/domain"
)

func TestRenderMessage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	papers := []domain.Paper{
		{
			Title:       "Attention Is Still All You Need",
			Link:        "https://example.org/p/attn",
			Description: "Revisiting attention at scale.",
			Authors:     []string{"A. One", "B. Two"},
		},
		{
			Title:       "Sparse Mixture Routing",
			Link:        "https://example.org/p/moe",
			Description: "Routing tokens with fewer experts.",
			Authors:     []string{"C. Three"},
		},
	}

	got := RenderMessage(now, papers)

	for _, want := range []string{
		"🤖 *Alan's Daily ML Papers* - Monday, August 31, 2026",
		"📄 *1. Attention Is Still All You Need*",
		"👥 A. One, B. Two",
		"🔗 https://example.org/p/attn",
		"📄 *2. Sparse Mixture Routing*",
		"👥 C. Three",
		"Stay curious!",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("message missing %q:\n%s", want, got)
		}
	}

	if RenderMessage(now, papers) != got {
		t.Fatal("render must be deterministic")
	}
}

func TestRenderMessageNoPapers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	got := RenderMessage(now, nil)
	if !strings.Contains(got, "Monday, August 31, 2026") {
		t.Fatalf("header missing: %s", got)
	}
	if strings.Contains(got, "📄") {
		t.Fatalf("no paper lines expected: %s", got)
	}
}
