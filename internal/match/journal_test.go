package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestJournalRunsInOrder(t *testing.T) {
	j := NewJournal(16, time.Second, zerolog.Nop())
	defer j.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		j.Submit("write", func(ctx context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 3 {
				return errors.New("disk full")
			}
			return nil
		})
	}
	j.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 10 {
		t.Fatalf("ran %d writes, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("write %d ran as %d", i, v)
		}
	}
}

func TestJournalDropsAfterClose(t *testing.T) {
	j := NewJournal(4, time.Second, zerolog.Nop())
	j.Close()
	j.Close()

	ran := false
	j.Submit("late", func(context.Context) error {
		ran = true
		return nil
	})
	j.Flush()
	if ran {
		t.Fatal("write after close should be dropped")
	}
}

func TestJournalWriteHasDeadline(t *testing.T) {
	j := NewJournal(4, 50*time.Millisecond, zerolog.Nop())
	defer j.Close()

	var hadDeadline bool
	j.Submit("deadline", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	j.Flush()
	if !hadDeadline {
		t.Fatal("journal writes should carry a deadline")
	}
}
