package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/opencompute/supersea/internal/model"
)

type recordingSender struct {
	mu   sync.Mutex
	name string
	err  error
	sent []Notification
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func TestDispatcherFansOut(t *testing.T) {
	a := &recordingSender{name: "a"}
	b := &recordingSender{name: "b"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	d := NewDispatcher([]Sender{a, b}, log)
	d.Send(context.Background(), Notification{ID: "listing-1", Title: "New Listing"})

	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("expected both senders to receive, got a=%d b=%d", len(a.sent), len(b.sent))
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	failing := &recordingSender{name: "failing", err: errors.New("boom")}
	ok := &recordingSender{name: "ok"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	d := NewDispatcher([]Sender{failing, ok}, log)
	d.Send(context.Background(), Notification{ID: "listing-1"})

	if len(ok.sent) != 1 {
		t.Error("a failing sender must not block the remaining senders")
	}
}

func TestForListing(t *testing.T) {
	event := model.FeedEvent{
		ListingID:       "listing-1",
		TokenID:         "42",
		ContractAddress: "0xabc",
		Name:            "Cat #42",
		Image:           "https://img.example/42.png",
		Price:           "1500000000000000000",
		Currency:        "ETH",
	}

	got := ForListing(event, "https://opensea.io")
	want := Notification{
		ID:                 "listing-1",
		URL:                "https://opensea.io/assets/0xabc/42",
		Title:              "New Listing",
		Body:               "Cat #42 (1.5 ETH)",
		IconURL:            "https://img.example/42.png",
		RequireInteraction: true,
		Silent:             true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notification mismatch (-want +got):\n%s", diff)
	}
}

func TestForListingUnparseablePrice(t *testing.T) {
	event := model.FeedEvent{ListingID: "l", TokenID: "1", ContractAddress: "0xabc", Name: "Cat", Price: "??", Currency: "ETH"}
	got := ForListing(event, "https://opensea.io")
	if got.Body != "Cat" {
		t.Errorf("body = %q, want bare name when price is unparseable", got.Body)
	}
}

func TestBellPlayer(t *testing.T) {
	var buf bytes.Buffer
	p := &BellPlayer{W: &buf}
	p.Play()
	if !strings.Contains(buf.String(), "\a") {
		t.Error("expected bell character")
	}
}
