package closer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestClose_LIFOOrder(t *testing.T) {
	c := NewCloser(0)

	var order []string
	for _, name := range []string{"db", "cache", "server"} {
		c.Add(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"server", "cache", "db"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestClose_CollectsErrors(t *testing.T) {
	c := NewCloser(0)
	c.Add("qdrant", func(context.Context) error { return errors.New("boom") })
	c.AddFunc("pool", func() {})

	err := c.Close(context.Background())
	if err == nil || !strings.Contains(err.Error(), "qdrant: boom") {
		t.Fatalf("expected named error, got %v", err)
	}
}

func TestClose_ForcesRemainingOnTimeout(t *testing.T) {
	c := NewCloser(100 * time.Millisecond)

	forced := make(chan struct{}, 1)
	c.Add("slow-first", func(ctx context.Context) error {
		select {
		case forced <- struct{}{}:
		default:
		}
		return nil
	})
	c.Add("hung", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)
	if err == nil || !strings.Contains(err.Error(), "shutdown interrupted") {
		t.Fatalf("expected interrupted shutdown, got %v", err)
	}

	select {
	case <-forced:
	default:
		t.Fatal("expected remaining resource to be closed")
	}
}
