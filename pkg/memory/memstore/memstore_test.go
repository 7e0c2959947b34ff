package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/swarajlabs/vaani/pkg/memory"
	"github.com/swarajlabs/vaani/pkg/types"
)

func TestStoreMessages(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	for i, content := range []string{"one", "two", "three"} {
		err := s.AppendMessage(ctx, "s1", types.Message{ID: content, Content: content})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	t.Run("limit keeps newest", func(t *testing.T) {
		t.Parallel()
		msgs, err := s.RecentMessages(ctx, "s1", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 2 || msgs[0].Content != "two" || msgs[1].Content != "three" {
			t.Errorf("msgs = %v", msgs)
		}
	})

	t.Run("zero limit applies the default window", func(t *testing.T) {
		t.Parallel()
		for i := 0; i < memory.DefaultMessageWindow+5; i++ {
			err := s.AppendMessage(ctx, "s2", types.Message{Content: fmt.Sprintf("m%d", i)})
			if err != nil {
				t.Fatal(err)
			}
		}
		msgs, err := s.RecentMessages(ctx, "s2", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != memory.DefaultMessageWindow {
			t.Fatalf("got %d messages, want %d", len(msgs), memory.DefaultMessageWindow)
		}
		if msgs[0].Content != "m5" {
			t.Errorf("window starts at %q, want m5", msgs[0].Content)
		}
	})

	t.Run("unknown session is empty", func(t *testing.T) {
		t.Parallel()
		msgs, err := s.RecentMessages(ctx, "nope", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 0 {
			t.Errorf("got %d messages", len(msgs))
		}
	})
}

func TestStoreTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := New(WithTTL(time.Hour), WithClock(clock))
	ctx := context.Background()

	if err := s.AppendMessage(ctx, "s1", types.Message{Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPreference(ctx, "s1", "language", "hi"); err != nil {
		t.Fatal(err)
	}

	// Within the TTL everything stays visible.
	now = now.Add(30 * time.Minute)
	msgs, err := s.RecentMessages(ctx, "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages before expiry", len(msgs))
	}

	// Past the TTL the whole session is gone: messages and preferences.
	now = now.Add(31 * time.Minute)
	msgs, err = s.RecentMessages(ctx, "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages after expiry", len(msgs))
	}
	prefs, err := s.Preferences(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs != nil {
		t.Errorf("prefs survived expiry: %v", prefs)
	}

	// Writing again starts a fresh session with a fresh expiry.
	if err := s.AppendMessage(ctx, "s1", types.Message{Content: "back"}); err != nil {
		t.Fatal(err)
	}
	msgs, _ = s.RecentMessages(ctx, "s1", 10)
	if len(msgs) != 1 || msgs[0].Content != "back" {
		t.Errorf("fresh session msgs = %v", msgs)
	}
}

func TestStorePreferencesIsolated(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.SetPreference(ctx, "s1", "theme", "dark"); err != nil {
		t.Fatal(err)
	}
	prefs, err := s.Preferences(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	// Mutating the returned map must not leak back into the store.
	prefs["theme"] = "light"
	again, _ := s.Preferences(ctx, "s1")
	if again["theme"] != "dark" {
		t.Errorf("stored theme = %v, want dark", again["theme"])
	}
}

func TestStoreNotesAndDelete(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.AppendNote(ctx, "s1", "note one"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendNote(ctx, "s1", "note two"); err != nil {
		t.Fatal(err)
	}
	notes, err := s.Notes(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || notes[0] != "note one" {
		t.Errorf("notes = %v", notes)
	}

	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	// Deleting a missing session is a no-op.
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	notes, _ = s.Notes(ctx, "s1")
	if len(notes) != 0 {
		t.Errorf("notes after delete = %v", notes)
	}
}
