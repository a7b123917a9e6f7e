package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type recordingSender struct {
	name   string
	titles []string
	fail   bool
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	if r.fail {
		return errors.New("unreachable")
	}
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventFilter(t *testing.T) {
	s := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{"position_closed", "order_failed"}, testLogger())

	if err := n.Notify(context.Background(), "position_opened", "opened", ""); err != nil {
		t.Fatalf("filtered event must not error: %v", err)
	}
	if err := n.Notify(context.Background(), "position_closed", "closed", ""); err != nil {
		t.Fatalf("allowed event: %v", err)
	}
	if len(s.titles) != 1 || s.titles[0] != "closed" {
		t.Fatalf("expected only the allowed event delivered, got %v", s.titles)
	}
}

func TestEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	n.Notify(context.Background(), "stream_disconnected", "down", "")
	if len(s.titles) != 1 {
		t.Fatalf("expected delivery with empty filter, got %v", s.titles)
	}
}

func TestOneFailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", fail: true}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), "order_failed", "failed", "details")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected combined error naming the failed sender, got %v", err)
	}
	if len(good.titles) != 1 {
		t.Fatalf("healthy sender must still deliver, got %v", good.titles)
	}
}
