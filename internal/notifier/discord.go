package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"VelArchiver/internal/config"
	"VelArchiver/internal/pipeline"
	"VelArchiver/internal/prune"

	"github.com/dustin/go-humanize"
)

const (
	colorSuccess = 0x2ecc71
	colorWarning = 0xf1c40f
	colorError   = 0xe74c3c
	colorPrune   = 0x9b59b6
)

type DiscordNotifier struct {
	webhookURL string
	retry      *config.DiscordRetry
	mentions   *config.DiscordMentions
	events     map[string]struct{}
	host       string
	client     *http.Client
	now        func() time.Time
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text,omitempty"`
}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

func NewDiscordNotifier(cfg *config.DiscordConfig) (*DiscordNotifier, error) {
	if cfg == nil || !cfg.Enabled || cfg.WebhookURL == "" {
		return nil, fmt.Errorf("discord notifier disabled or missing webhook_url")
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	timeout := 10 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	events := make(map[string]struct{})
	for _, e := range cfg.Events {
		events[e] = struct{}{}
	}
	return &DiscordNotifier{
		webhookURL: cfg.WebhookURL,
		retry:      cfg.Retry,
		mentions:   cfg.Mentions,
		events:     events,
		host:       host,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

func (d *DiscordNotifier) allowed(event string) bool {
	if len(d.events) == 0 {
		return true
	}
	_, ok := d.events[event]
	return ok
}

func (d *DiscordNotifier) errorMention() string {
	if d.mentions != nil {
		return d.mentions.OnError
	}
	return ""
}

func (d *DiscordNotifier) send(ctx context.Context, embed discordEmbed, mention string) error {
	embed.Timestamp = d.now().UTC().Format(time.RFC3339)
	embed.Footer = &discordFooter{Text: d.host}
	body, err := json.Marshal(discordPayload{Content: mention, Embeds: []discordEmbed{embed}})
	if err != nil {
		return err
	}
	attempts := 1
	var delay time.Duration
	if d.retry != nil && d.retry.Attempts > 1 {
		attempts = d.retry.Attempts
		delay = time.Duration(d.retry.BackoffMs) * time.Millisecond
	}
	var lastStatus int
	for i := range attempts {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.client.Do(req)
		if resp != nil {
			lastStatus = resp.StatusCode
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
		}
		if err == nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		if delay > 0 && i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("discord webhook failed after %d attempts (last status %d)", attempts, lastStatus)
}

func (d *DiscordNotifier) NotifyRun(ctx context.Context, rep *pipeline.Report) error {
	event, title, color, mention := EventSuccess, "Archive run finished", colorSuccess, ""
	if rep.HasFailures() || rep.BatchesDeferred > 0 {
		event, title, color, mention = EventWarning, "Archive run finished with problems", colorWarning, d.errorMention()
	}
	if !d.allowed(event) {
		return nil
	}
	if rep.DryRun {
		title += " (dry run)"
	}
	embed := discordEmbed{
		Title:       title,
		Description: "Window " + rep.Window.String(),
		Color:       color,
		Fields: []discordField{
			{Name: "Run", Value: rep.RunID, Inline: false},
			{Name: "Listed", Value: strconv.Itoa(rep.ObjectsListed), Inline: true},
			{Name: "Archived", Value: strconv.Itoa(rep.ObjectsArchived), Inline: true},
			{Name: "Deleted", Value: strconv.Itoa(rep.ObjectsDeleted), Inline: true},
			{Name: "Batches", Value: fmt.Sprintf("%d (%d failed, %d deferred)", rep.BatchesTotal, rep.BatchesFailed, rep.BatchesDeferred), Inline: true},
			{Name: "Size", Value: humanize.IBytes(uint64(max(rep.BytesArchived, 0))) + " → " + humanize.IBytes(uint64(max(rep.BytesCompressed, 0))), Inline: true},
			{Name: "Duration", Value: rep.Duration, Inline: true},
		},
	}
	if rep.ObjectsFailed > 0 || rep.ObjectsSkippedModified > 0 || rep.DeleteErrors > 0 {
		embed.Fields = append(embed.Fields, discordField{
			Name:  "Problems",
			Value: fmt.Sprintf("%d unreadable, %d modified since listing, %d delete errors", rep.ObjectsFailed, rep.ObjectsSkippedModified, rep.DeleteErrors),
		})
	}
	return d.send(ctx, embed, mention)
}

func (d *DiscordNotifier) NotifyError(ctx context.Context, err error) error {
	if !d.allowed(EventError) {
		return nil
	}
	return d.send(ctx, discordEmbed{
		Title:       "Archive run failed",
		Description: err.Error(),
		Color:       colorError,
	}, d.errorMention())
}

func (d *DiscordNotifier) NotifyPrune(ctx context.Context, res *prune.Result) error {
	if !d.allowed(EventPrune) {
		return nil
	}
	title := "Prune completed"
	if res.DryRun {
		title += " (dry run)"
	}
	return d.send(ctx, discordEmbed{
		Title: title,
		Color: colorPrune,
		Fields: []discordField{
			{Name: "Kept", Value: strconv.Itoa(res.Kept), Inline: true},
			{Name: "Expired", Value: strconv.Itoa(len(res.Expired)), Inline: true},
			{Name: "Orphans", Value: strconv.Itoa(len(res.Orphans)), Inline: true},
			{Name: "Failures", Value: strconv.Itoa(len(res.Failures)), Inline: true},
		},
	}, "")
}
