package action

import (
	"context"
	"fmt"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/pkg/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return NewRegistry(m)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	r.Register(Definition{Name: "demo", Description: "first"})
	r.Register(Definition{Name: "demo", Description: "second"})

	defs := r.Definitions()
	if len(defs) != 1 {
		t.Fatalf("definitions = %d, want 1", len(defs))
	}
	if defs[0].Description != "second" {
		t.Errorf("description = %q, want second", defs[0].Description)
	}
}

func TestRegistryExecuteUnknownAction(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	result := r.Execute(context.Background(), "s1", types.Intent{Action: "teleport"})
	if result.Success {
		t.Error("unknown action must fail")
	}
	if result.Message == "" {
		t.Error("failure must carry a message")
	}

	// The failed dispatch still lands in the history.
	hist := r.History(10)
	if len(hist) != 1 || hist[0].Action != "teleport" {
		t.Errorf("history = %+v", hist)
	}
}

func TestRegistryExecuteMissingRequiredParameter(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	RegisterBuiltins(r, Deps{})

	cases := []struct {
		name    string
		intent  types.Intent
		missing string
	}{
		{
			name:    "absent entity",
			intent:  types.Intent{Action: "search_web"},
			missing: "query",
		},
		{
			name: "empty string entity",
			intent: types.Intent{
				Action:   "open_website",
				Entities: map[string]any{"url": ""},
			},
			missing: "url",
		},
		{
			name: "nil entity",
			intent: types.Intent{
				Action:   "add_note",
				Entities: map[string]any{"content": nil},
			},
			missing: "content",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := r.Execute(context.Background(), "s1", tc.intent)
			if result.Success {
				t.Error("missing required parameter must fail")
			}
			want := "Missing required parameter: " + tc.missing
			if result.Message != want {
				t.Errorf("message = %q, want %q", result.Message, want)
			}
		})
	}

	// Optional parameters left out do not block execution.
	result := r.Execute(context.Background(), "s1", types.Intent{
		Action:   "play_media",
		Entities: map[string]any{"query": "lofi beats"},
	})
	if !result.Success {
		t.Errorf("optional parameter absence must not fail: %+v", result)
	}
}

func TestRegistryExecuteRecoversPanic(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	r.Register(Definition{
		Name: "explode",
		Handler: func(context.Context, string, map[string]any) types.ActionResult {
			panic("boom")
		},
	})

	result := r.Execute(context.Background(), "s1", types.Intent{Action: "explode"})
	if result.Success {
		t.Error("panicking handler must yield a failed result")
	}
	if result.Message == "" {
		t.Error("failure must carry a message")
	}
}

func TestRegistryHistoryRing(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	r.Register(Definition{
		Name: "noop",
		Handler: func(_ context.Context, _ string, entities map[string]any) types.ActionResult {
			return types.ActionResult{Success: true, Message: "ok"}
		},
	})

	for i := 0; i < historySize+10; i++ {
		r.Execute(context.Background(), "s1", types.Intent{
			Action:   "noop",
			Entities: map[string]any{"n": fmt.Sprintf("%d", i)},
		})
	}

	hist := r.History(0)
	if len(hist) != historySize {
		t.Fatalf("history length = %d, want %d", len(hist), historySize)
	}
	// Newest first: the last execution is at index 0, and the oldest 10 have
	// been overwritten.
	if got := hist[0].Entities["n"]; got != fmt.Sprintf("%d", historySize+9) {
		t.Errorf("newest entry n = %v", got)
	}
	if got := hist[len(hist)-1].Entities["n"]; got != "10" {
		t.Errorf("oldest retained entry n = %v, want 10", got)
	}

	limited := r.History(5)
	if len(limited) != 5 {
		t.Errorf("limited history length = %d, want 5", len(limited))
	}

	r.ClearHistory()
	if got := r.History(0); len(got) != 0 {
		t.Errorf("history after clear = %d entries", len(got))
	}
}

func TestRegistryFunctions(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	RegisterBuiltins(r, Deps{})

	fns := r.Functions()
	if len(fns) != 9 {
		t.Fatalf("functions = %d, want 9", len(fns))
	}

	byName := map[string]int{}
	for i, fn := range fns {
		byName[fn.Name] = i
	}
	idx, ok := byName["get_system_info"]
	if !ok {
		t.Fatal("get_system_info missing")
	}
	if !fns[idx].RequiresConfirmation {
		t.Error("get_system_info must require confirmation")
	}

	idx = byName["open_website"]
	params := fns[idx].Parameters
	props, _ := params["properties"].(map[string]any)
	if _, ok := props["url"]; !ok {
		t.Error("open_website schema missing url property")
	}
	required, _ := params["required"].([]string)
	if len(required) != 1 || required[0] != "url" {
		t.Errorf("open_website required = %v", required)
	}
}
