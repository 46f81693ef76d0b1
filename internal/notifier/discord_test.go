package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"VelArchiver/internal/config"
	"VelArchiver/internal/pipeline"
	"VelArchiver/internal/prune"
)

type hook struct {
	mu       sync.Mutex
	payloads []discordPayload
	status   []int
}

func (h *hook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var p discordPayload
	_ = json.NewDecoder(r.Body).Decode(&p)
	h.payloads = append(h.payloads, p)
	code := http.StatusNoContent
	if n := len(h.payloads); n <= len(h.status) {
		code = h.status[n-1]
	}
	w.WriteHeader(code)
}

func newTestNotifier(t *testing.T, h *hook, cfg config.DiscordConfig) *DiscordNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.Enabled = true
	cfg.WebhookURL = srv.URL
	n, err := NewDiscordNotifier(&cfg)
	if err != nil {
		t.Fatalf("NewDiscordNotifier: %v", err)
	}
	return n
}

func TestNewDiscordNotifier_Disabled(t *testing.T) {
	for name, cfg := range map[string]*config.DiscordConfig{
		"nil":        nil,
		"disabled":   {WebhookURL: "http://x"},
		"no webhook": {Enabled: true},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewDiscordNotifier(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNotifyRun_SuccessAndWarning(t *testing.T) {
	h := &hook{}
	n := newTestNotifier(t, h, config.DiscordConfig{Mentions: &config.DiscordMentions{OnError: "@ops"}})

	if err := n.NotifyRun(context.Background(), &pipeline.Report{RunID: "r1", ObjectsArchived: 3}); err != nil {
		t.Fatalf("NotifyRun: %v", err)
	}
	if err := n.NotifyRun(context.Background(), &pipeline.Report{RunID: "r2", BatchesFailed: 1}); err != nil {
		t.Fatalf("NotifyRun: %v", err)
	}
	if len(h.payloads) != 2 {
		t.Fatalf("got %d payloads, want 2", len(h.payloads))
	}
	ok, warn := h.payloads[0], h.payloads[1]
	if ok.Content != "" || ok.Embeds[0].Color != colorSuccess {
		t.Errorf("success payload = %+v", ok)
	}
	if warn.Content != "@ops" || warn.Embeds[0].Color != colorWarning {
		t.Errorf("warning payload = %+v", warn)
	}
	if warn.Embeds[0].Footer == nil || warn.Embeds[0].Footer.Text == "" {
		t.Error("footer should carry the host name")
	}
}

func TestNotify_EventFilter(t *testing.T) {
	h := &hook{}
	n := newTestNotifier(t, h, config.DiscordConfig{Events: []string{EventError}})

	_ = n.NotifyRun(context.Background(), &pipeline.Report{})
	_ = n.NotifyPrune(context.Background(), &prune.Result{})
	if err := n.NotifyError(context.Background(), errors.New("listing failed")); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if len(h.payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(h.payloads))
	}
	if got := h.payloads[0].Embeds[0].Description; got != "listing failed" {
		t.Errorf("description = %q", got)
	}
}

func TestSend_Retries(t *testing.T) {
	h := &hook{status: []int{http.StatusInternalServerError, http.StatusTooManyRequests}}
	n := newTestNotifier(t, h, config.DiscordConfig{Retry: &config.DiscordRetry{Attempts: 3, BackoffMs: 1}})

	if err := n.NotifyPrune(context.Background(), &prune.Result{Kept: 2}); err != nil {
		t.Fatalf("NotifyPrune: %v", err)
	}
	if len(h.payloads) != 3 {
		t.Errorf("got %d attempts, want 3", len(h.payloads))
	}
}

func TestSend_ClientErrorNotRetried(t *testing.T) {
	h := &hook{status: []int{http.StatusBadRequest, http.StatusBadRequest}}
	n := newTestNotifier(t, h, config.DiscordConfig{Retry: &config.DiscordRetry{Attempts: 3, BackoffMs: 1}})

	if err := n.NotifyError(context.Background(), errors.New("boom")); err == nil {
		t.Fatal("expected error")
	}
	if len(h.payloads) != 1 {
		t.Errorf("got %d attempts, want 1", len(h.payloads))
	}
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	if err := n.NotifyRun(context.Background(), &pipeline.Report{}); err != nil {
		t.Error(err)
	}
}
