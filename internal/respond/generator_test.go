package respond

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/swarajlabs/vaani/pkg/provider/classifier/mock"
	"github.com/swarajlabs/vaani/pkg/types"
)

// seededGenerator returns a Generator with a fixed random source so template
// selection is reproducible.
func seededGenerator(provider *mock.Provider) *Generator {
	rng := rand.New(rand.NewPCG(1, 2))
	if provider == nil {
		return NewGenerator(nil, WithRand(rng))
	}
	return NewGenerator(provider, WithRand(rng))
}

func TestGenerateUsesGenerativePath(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{GenerateReplyResult: "Done, bhai! YouTube is up."}
	g := seededGenerator(provider)

	got := g.Generate(context.Background(),
		types.Intent{Action: "open_website", Confidence: 0.9},
		types.ActionResult{Success: true, Data: map[string]any{"name": "YouTube"}},
		nil, types.LangEnglish,
	)
	if got != "Done, bhai! YouTube is up." {
		t.Errorf("reply = %q", got)
	}
	if len(provider.GenerateReplyCalls) != 1 {
		t.Fatalf("provider calls = %d", len(provider.GenerateReplyCalls))
	}
	prompt := provider.GenerateReplyCalls[0].Request.Prompt
	if !strings.Contains(prompt, "YouTube") || !strings.Contains(prompt, "Swaraj") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestGenerateFallsBackToTemplates(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{GenerateReplyErr: errors.New("backend down")}
	g := seededGenerator(provider)

	got := g.Generate(context.Background(),
		types.Intent{Action: "open_website"},
		types.ActionResult{Success: true, Data: map[string]any{"name": "GitHub"}},
		nil, types.LangEnglish,
	)
	if !strings.Contains(got, "GitHub") {
		t.Errorf("template reply should mention the site, got %q", got)
	}
}

func TestGenerateErrorResponseQuotesReason(t *testing.T) {
	t.Parallel()

	g := seededGenerator(nil)
	got := g.Generate(context.Background(),
		types.Intent{Action: "open_website"},
		types.ActionResult{Success: false, Message: "Invalid URL format"},
		nil, types.LangEnglish,
	)
	if !strings.Contains(got, "Invalid URL format") {
		t.Errorf("error reply should quote the failure, got %q", got)
	}
}

func TestGenerateConfirmationRequest(t *testing.T) {
	t.Parallel()

	g := seededGenerator(nil)

	t.Run("known action", func(t *testing.T) {
		t.Parallel()
		got := g.Generate(context.Background(),
			types.Intent{Action: "get_system_info", RequiresConfirmation: true},
			types.ActionResult{Success: true},
			nil, types.LangEnglish,
		)
		if !strings.Contains(got, "confirm") {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("generic action", func(t *testing.T) {
		t.Parallel()
		got := g.Generate(context.Background(),
			types.Intent{Action: "open_website", RequiresConfirmation: true},
			types.ActionResult{Success: true},
			nil, types.LangEnglish,
		)
		if !strings.Contains(got, "open_website") {
			t.Errorf("generic confirmation should name the action, got %q", got)
		}
	})

	t.Run("confirmed result skips confirmation", func(t *testing.T) {
		t.Parallel()
		got := g.Generate(context.Background(),
			types.Intent{Action: "get_system_info", RequiresConfirmation: true},
			types.ActionResult{Success: true, Data: map[string]any{"confirmed": true}},
			nil, types.LangEnglish,
		)
		if strings.Contains(got, "confirm") {
			t.Errorf("confirmed turn should not ask again, got %q", got)
		}
	})
}

func TestGenerateLanguageSelection(t *testing.T) {
	t.Parallel()

	g := seededGenerator(nil)

	hindi := g.Generate(context.Background(),
		types.Intent{Action: "get_system_info"},
		types.ActionResult{Success: true},
		nil, types.LangHindi,
	)
	if !strings.ContainsRune(hindi, 'स') {
		t.Errorf("hindi reply missing Devanagari, got %q", hindi)
	}

	// Unknown language tags fall back to English.
	fallback := g.Generate(context.Background(),
		types.Intent{Action: "get_system_info"},
		types.ActionResult{Success: true},
		nil, types.Language("fr"),
	)
	if strings.ContainsRune(fallback, 'स') {
		t.Errorf("invalid language should fall back to English, got %q", fallback)
	}
}

func TestGenerateSeededDeterminism(t *testing.T) {
	t.Parallel()

	call := func() string {
		g := seededGenerator(nil)
		return g.Generate(context.Background(),
			types.Intent{Action: "general_conversation"},
			types.ActionResult{Success: true},
			nil, types.LangEnglish,
		)
	}
	if call() != call() {
		t.Error("same seed must yield the same template")
	}
}

func TestScenarioLines(t *testing.T) {
	t.Parallel()

	g := seededGenerator(nil)

	if got := g.Greeting(types.LangMixed); got == "" {
		t.Error("empty greeting")
	}
	if got := g.Goodbye(types.LangHindi); got == "" {
		t.Error("empty goodbye")
	}
	if got := g.ClarificationRequest(types.LangEnglish); !strings.Contains(strings.ToLower(got), "rephrase") && !strings.Contains(got, "didn't") && !strings.Contains(got, "not sure") {
		t.Errorf("clarification = %q", got)
	}
	if got := g.Fallback(types.Language("xx")); got != fallbackResponses[types.LangEnglish] {
		t.Errorf("fallback for unknown language = %q", got)
	}
}
