package intent

import (
	"context"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/swarajlabs/vaani/internal/action"
	"github.com/swarajlabs/vaani/internal/observe"
	"github.com/swarajlabs/vaani/pkg/types"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	reg := action.NewRegistry(m)
	action.RegisterBuiltins(reg, action.Deps{})
	return NewValidator(reg)
}

func TestValidateUnknownActionFailsClosed(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	got := v.Validate(types.Intent{Action: "launch_rocket", Confidence: 0.99})
	if got.Valid {
		t.Fatal("unknown action must be invalid")
	}
	if !strings.Contains(got.Reason, "launch_rocket") {
		t.Errorf("reason should name the action, got %q", got.Reason)
	}
}

func TestValidateRequiredParameters(t *testing.T) {
	t.Parallel()

	v := newValidator(t)

	cases := []struct {
		name     string
		intent   types.Intent
		valid    bool
		mentions string
	}{
		{
			name:   "open_website with url",
			intent: types.Intent{Action: "open_website", Entities: map[string]any{"url": "https://youtube.com"}},
			valid:  true,
		},
		{
			name:     "open_website missing url",
			intent:   types.Intent{Action: "open_website"},
			valid:    false,
			mentions: "url",
		},
		{
			name:     "open_website empty url",
			intent:   types.Intent{Action: "open_website", Entities: map[string]any{"url": ""}},
			valid:    false,
			mentions: "url",
		},
		{
			name:     "search_web missing query",
			intent:   types.Intent{Action: "search_web"},
			valid:    false,
			mentions: "query",
		},
		{
			name:   "show_time has no required params",
			intent: types.Intent{Action: "show_time"},
			valid:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := v.Validate(tc.intent)
			if got.Valid != tc.valid {
				t.Fatalf("valid = %v, want %v (reason %q)", got.Valid, tc.valid, got.Reason)
			}
			if tc.mentions != "" && !strings.Contains(got.Reason, tc.mentions) {
				t.Errorf("reason %q should mention %q", got.Reason, tc.mentions)
			}
		})
	}
}

func TestFinalizeConfidenceBoundary(t *testing.T) {
	t.Parallel()

	v := newValidator(t)

	t.Run("exactly at threshold executes directly", func(t *testing.T) {
		t.Parallel()
		got := v.Finalize(types.Intent{Action: "open_website", Confidence: 0.70})
		if got.RequiresConfirmation {
			t.Error("confidence 0.70 must not require confirmation")
		}
	})

	t.Run("just below threshold confirms", func(t *testing.T) {
		t.Parallel()
		got := v.Finalize(types.Intent{Action: "open_website", Confidence: 0.69})
		if !got.RequiresConfirmation {
			t.Error("confidence 0.69 must require confirmation")
		}
	})

	t.Run("sensitive action always confirms", func(t *testing.T) {
		t.Parallel()
		got := v.Finalize(types.Intent{Action: "get_system_info", Confidence: 0.99})
		if !got.RequiresConfirmation {
			t.Error("get_system_info must always require confirmation")
		}
	})

	t.Run("original intent is not mutated", func(t *testing.T) {
		t.Parallel()
		in := types.Intent{Action: "open_website", Confidence: 0.3}
		_ = v.Finalize(in)
		if in.RequiresConfirmation {
			t.Error("Finalize must operate on a copy")
		}
	})
}
