// Package webhook publishes catalog change events to an outbound HTTP
// endpoint. Events are queued on Publish and delivered either immediately
// (AutoDeliver) or on Flush, with retries and an optional signature header.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// errNoURL means delivery was skipped because no endpoint is set. The event
// stays queued.
var errNoURL = errors.New("no webhook URL configured")

// SignatureHeader carries the HMAC signature of a delivered payload.
const SignatureHeader = "X-QB-Signature"

// Signer returns headers that let the receiver verify a payload.
type Signer interface {
	Sign(payload []byte, secret string, at time.Time) map[string]string
}

// HMACSigner signs "<unix>.<payload>" with HMAC-SHA256 and sends
// "t=<unix>,v1=<hex>" in SignatureHeader.
type HMACSigner struct{}

// Sign implements Signer.
func (HMACSigner) Sign(payload []byte, secret string, at time.Time) map[string]string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return map[string]string{
		SignatureHeader: "t=" + ts + ",v1=" + computeMAC(ts, payload, secret),
	}
}

// Verify checks a SignatureHeader value against payload.
func Verify(header string, payload []byte, secret string) bool {
	var ts, sig string
	for _, part := range bytes.Split([]byte(header), []byte(",")) {
		k, v, ok := bytes.Cut(part, []byte("="))
		if !ok {
			continue
		}
		switch string(k) {
		case "t":
			ts = string(v)
		case "v1":
			sig = string(v)
		}
	}
	if ts == "" || sig == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(computeMAC(ts, payload, secret)))
}

func computeMAC(ts string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is one change notification.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Delivery records one delivery attempt.
type Delivery struct {
	EventID    string    `json:"event_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config configures a Dispatcher.
type Config struct {
	URL         string
	Secret      string
	Signer      Signer
	Logger      *slog.Logger
	MaxRetries  int
	RetryDelay  time.Duration // doubled after every failed attempt
	AutoDeliver bool
	// HistorySize bounds the number of published events kept for Events().
	HistorySize int
	// QueueSize bounds undelivered events; the oldest are dropped first.
	QueueSize int
	Now       func() time.Time
}

// Dispatcher queues and delivers events. It satisfies catalog.EventSink via
// Publish and admin.WebhookFlusher via FlushWebhooks.
type Dispatcher struct {
	mu         sync.Mutex
	url        string
	secret     string
	signer     Signer
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	auto       bool
	now        func() time.Time
	client     *http.Client

	counter    int
	queue      []Event
	queueCap   int
	dropped    int
	history    []Event
	historyCap int
	deliveries []Delivery
}

// NewDispatcher creates a dispatcher. Defaults: 3 attempts, 500ms initial
// retry delay, HMACSigner, 100 events of history, 1000 queued events.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Signer == nil {
		cfg.Signer = HMACSigner{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		url:        cfg.URL,
		secret:     cfg.Secret,
		signer:     cfg.Signer,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		auto:       cfg.AutoDeliver,
		now:        cfg.Now,
		client:     &http.Client{Timeout: 10 * time.Second},
		historyCap: cfg.HistorySize,
		queueCap:   cfg.QueueSize,
	}
}

// SetURL changes the delivery endpoint. An empty URL disables delivery;
// events still queue.
func (d *Dispatcher) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Publish converts data to a JSON object and enqueues it under eventType.
func (d *Dispatcher) Publish(eventType string, data any) {
	payload, err := toMap(data)
	if err != nil {
		d.logger.Error("webhook payload not serializable", "type", eventType, "err", err)
		return
	}
	d.Enqueue(eventType, payload)
}

func toMap(data any) (map[string]any, error) {
	if m, ok := data.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		// Scalars and arrays are wrapped.
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return map[string]any{"object": v}, nil
	}
	return m, nil
}

// Enqueue adds an event to the queue and history.
func (d *Dispatcher) Enqueue(eventType string, data map[string]any) Event {
	d.mu.Lock()
	d.counter++
	evt := Event{
		ID:        fmt.Sprintf("evt_%06d", d.counter),
		Type:      eventType,
		Data:      data,
		CreatedAt: d.now(),
	}
	d.queue = append(d.queue, evt)
	if over := len(d.queue) - d.queueCap; over > 0 {
		d.queue = append(d.queue[:0:0], d.queue[over:]...)
		d.dropped += over
		d.logger.Warn("webhook queue full, dropped oldest events", "dropped", over, "queued", len(d.queue))
	}
	d.history = append(d.history, evt)
	if over := len(d.history) - d.historyCap; over > 0 {
		d.history = append(d.history[:0:0], d.history[over:]...)
	}
	auto := d.auto
	d.mu.Unlock()

	if auto {
		go func() {
			if err := d.deliver(context.Background(), evt); err == nil {
				d.dequeue(evt.ID)
			}
		}()
	}
	return evt
}

// Flush delivers every queued event in order. Delivered events leave the
// queue; failed ones stay for the next Flush. The last error is returned.
// Without a URL nothing is sent and the queue is left as is.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	pending := append([]Event(nil), d.queue...)
	d.mu.Unlock()

	var lastErr error
	for _, evt := range pending {
		err := d.deliver(ctx, evt)
		if errors.Is(err, errNoURL) {
			d.logger.Debug("no webhook URL configured, keeping events queued", "queued", len(pending))
			return nil
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		d.dequeue(evt.ID)
	}
	return lastErr
}

// FlushWebhooks flushes with a background context.
func (d *Dispatcher) FlushWebhooks() error {
	return d.Flush(context.Background())
}

func (d *Dispatcher) dequeue(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.queue {
		if e.ID == id {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) error {
	d.mu.Lock()
	url, secret, signer := d.url, d.secret, d.signer
	d.mu.Unlock()

	if url == "" {
		return errNoURL
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	delay := d.retryDelay
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		status, err := d.post(ctx, url, payload, secret, signer)
		rec := Delivery{EventID: evt.ID, URL: url, StatusCode: status, Attempt: attempt, Timestamp: d.now()}
		if err == nil && status >= 300 {
			err = fmt.Errorf("webhook delivery failed: status %d", status)
		}
		if err != nil {
			rec.Error = err.Error()
		}
		d.mu.Lock()
		d.deliveries = append(d.deliveries, rec)
		d.mu.Unlock()

		if err == nil {
			return nil
		}
		lastErr = err
		d.logger.Warn("webhook delivery attempt failed", "event_id", evt.ID, "attempt", attempt, "err", err)

		if attempt < d.maxRetries {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay *= 2
		}
	}
	return lastErr
}

func (d *Dispatcher) post(ctx context.Context, url string, payload []byte, secret string, signer Signer) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		for k, v := range signer.Sign(payload, secret, d.now()) {
			req.Header.Set(k, v)
		}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Queued returns undelivered events.
func (d *Dispatcher) Queued() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.queue...)
}

// Events returns the most recent published events, oldest first.
func (d *Dispatcher) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.history...)
}

// Dropped reports how many undelivered events were discarded because the
// queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Deliveries returns every delivery attempt.
func (d *Dispatcher) Deliveries() []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Delivery(nil), d.deliveries...)
}

// Reset clears the queue, history and delivery log.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = nil
	d.history = nil
	d.deliveries = nil
	d.counter = 0
	d.dropped = 0
}
