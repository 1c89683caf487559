// Package historytest provides a conformance suite for history.Store
// implementations.
package historytest

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/flemzord/scout/internal/history"
	"github.com/flemzord/scout/internal/provider"
)

func msg(role provider.MessageRole, content string) provider.LLMMessage {
	return provider.LLMMessage{Role: role, Content: content}
}

// RunStoreTests exercises the history.Store contract. newStore must return
// an empty, independent store on every call.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) history.Store) {
	t.Helper()

	t.Run("AppendAndAll", func(t *testing.T) {
		store := newStore(t)
		want := []provider.LLMMessage{
			msg(provider.MessageRoleAssistant, "Hi! Ask me anything…"),
			msg(provider.MessageRoleUser, "what is go?"),
			msg(provider.MessageRoleAssistant, "a language"),
		}
		for _, m := range want {
			if err := store.Append("s1", m); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		all, err := store.All("s1")
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		if len(all) != len(want) {
			t.Fatalf("All: got %d messages, want %d", len(all), len(want))
		}
		for i := range want {
			if all[i].Role != want[i].Role || all[i].Content != want[i].Content {
				t.Errorf("All[%d] = %+v, want %+v", i, all[i], want[i])
			}
		}
	})

	t.Run("Recent", func(t *testing.T) {
		tests := []struct {
			n         int
			wantLen   int
			wantFirst string
		}{
			{n: 3, wantLen: 3, wantFirst: "msg-2"},
			{n: 10, wantLen: 5, wantFirst: "msg-0"},
			{n: 5, wantLen: 5, wantFirst: "msg-0"},
			{n: 0, wantLen: 0},
		}
		store := newStore(t)
		for i := range 5 {
			if err := store.Append("s1", msg(provider.MessageRoleUser, fmt.Sprintf("msg-%d", i))); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		for _, tt := range tests {
			recent, err := store.Recent("s1", tt.n)
			if err != nil {
				t.Fatalf("Recent(%d): %v", tt.n, err)
			}
			if len(recent) != tt.wantLen {
				t.Fatalf("Recent(%d): got %d, want %d", tt.n, len(recent), tt.wantLen)
			}
			if tt.wantLen > 0 && recent[0].Content != tt.wantFirst {
				t.Errorf("Recent(%d)[0] = %q, want %q", tt.n, recent[0].Content, tt.wantFirst)
			}
		}
	})

	t.Run("UnknownSession", func(t *testing.T) {
		store := newStore(t)
		all, err := store.All("nope")
		if err != nil || len(all) != 0 {
			t.Errorf("All = %v, %v; want empty", all, err)
		}
		n, err := store.Len("nope")
		if err != nil || n != 0 {
			t.Errorf("Len = %d, %v; want 0", n, err)
		}
	})

	t.Run("AllReturnsCopy", func(t *testing.T) {
		store := newStore(t)
		if err := store.Append("s1", msg(provider.MessageRoleUser, "original")); err != nil {
			t.Fatal(err)
		}
		all, _ := store.All("s1")
		all[0].Content = "mutated"
		again, _ := store.All("s1")
		if again[0].Content != "original" {
			t.Errorf("stored message mutated through returned slice: %q", again[0].Content)
		}
	})

	t.Run("InvalidRole", func(t *testing.T) {
		store := newStore(t)
		err := store.Append("s1", msg("robot", "x"))
		if !errors.Is(err, history.ErrInvalidMessage) {
			t.Errorf("err = %v, want ErrInvalidMessage", err)
		}
	})

	t.Run("PurgeAndSessions", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"b", "a", "c"} {
			if err := store.Append(id, msg(provider.MessageRoleUser, id)); err != nil {
				t.Fatal(err)
			}
		}
		if err := store.Purge("b"); err != nil {
			t.Fatalf("Purge: %v", err)
		}
		ids, err := store.Sessions()
		if err != nil {
			t.Fatalf("Sessions: %v", err)
		}
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
			t.Errorf("Sessions = %v, want [a c]", ids)
		}
		if n, _ := store.Len("b"); n != 0 {
			t.Errorf("Len after purge = %d", n)
		}
	})

	t.Run("ConcurrentAppend", func(t *testing.T) {
		store := newStore(t)
		const writers, perWriter = 8, 10
		var wg sync.WaitGroup
		for w := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWriter {
					_ = store.Append("s1", msg(provider.MessageRoleUser, fmt.Sprintf("%d-%d", w, i)))
				}
			}()
		}
		wg.Wait()
		if n, _ := store.Len("s1"); n != writers*perWriter {
			t.Errorf("Len = %d, want %d", n, writers*perWriter)
		}
	})
}
