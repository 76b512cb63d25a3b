package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// peer is a test WebSocket endpoint. It records text frames and lets the test
// push frames back.
type peer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received []string
	ready    chan struct{}
}

func newPeer(t *testing.T) *peer {
	t.Helper()

	p := &peer{ready: make(chan struct{})}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := p.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
		close(p.ready)

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				p.mu.Lock()
				p.received = append(p.received, string(data))
				p.mu.Unlock()
			}
		}
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *peer) url() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http")
}

func (p *peer) messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}

func (p *peer) write(t *testing.T, msg string) {
	t.Helper()
	<-p.ready
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("peer write: %v", err)
	}
}

func (p *peer) close(code int) {
	<-p.ready
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
	p.conn.Close()
}

func dialPeer(t *testing.T, p *peer, cfg *Config) *Client {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.URL = p.url()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { client.Close(context.Background()) })
	return client
}

func runClient(client *Client, handler func([]byte)) <-chan error {
	done := make(chan error, 1)
	go func() { done <- client.Run(handler) }()
	return done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestDialMissingURL tests that Dial refuses an empty configuration
func TestDialMissingURL(t *testing.T) {
	t.Parallel()

	if _, err := Dial(context.Background(), nil); err == nil {
		t.Error("Dial(nil) expected error")
	}
	if _, err := Dial(context.Background(), &Config{}); err == nil {
		t.Error("Dial(empty URL) expected error")
	}
}

// TestDialRefused tests that a failed upgrade is reported
func TestDialRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := Dial(context.Background(), &Config{URL: "ws" + strings.TrimPrefix(server.URL, "http")})
	if err == nil {
		t.Fatal("Dial() expected error for non-upgrading endpoint")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q should mention the HTTP status", err)
	}
}

// TestSendBeforeRun tests that messages queued before Run are written in order
func TestSendBeforeRun(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	client := dialPeer(t, p, nil)

	for _, msg := range []string{`{"type":3,"id":0}`, `{"type":4}`} {
		if err := client.Send(context.Background(), []byte(msg)); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if got := p.messages(); len(got) != 0 {
		t.Fatalf("messages written before Run: %q", got)
	}

	runClient(client, func([]byte) {})
	waitFor(t, func() bool { return len(p.messages()) == 2 })

	got := p.messages()
	if got[0] != `{"type":3,"id":0}` || got[1] != `{"type":4}` {
		t.Errorf("peer received %q", got)
	}
}

// TestRunDeliversInOrder tests inbound delivery order
func TestRunDeliversInOrder(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	client := dialPeer(t, p, nil)

	var mu sync.Mutex
	var got []string
	runClient(client, func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		p.write(t, string(rune('a'+i)))
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 20
	})

	mu.Lock()
	defer mu.Unlock()
	for i, msg := range got {
		if msg != string(rune('a'+i)) {
			t.Fatalf("message %d = %q, out of order", i, msg)
		}
	}
}

// TestCloseBeforeRun tests that a connection closed before its receive loop
// starts still ends cleanly
func TestCloseBeforeRun(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	client := dialPeer(t, p, nil)

	if err := client.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-runClient(client, func([]byte) { t.Error("handler called after Close") }):
		if err != nil {
			t.Errorf("Run() = %v, want nil after local close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return on a closed connection")
	}
}

// TestCloseStopsRun tests that a local close ends Run cleanly
func TestCloseStopsRun(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	client := dialPeer(t, p, nil)
	done := runClient(client, func([]byte) {})

	if err := client.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after local close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Close")
	}

	if client.IsAlive() {
		t.Error("IsAlive() = true after Close")
	}
	if err := client.Send(context.Background(), []byte("x")); err == nil {
		t.Error("Send() after Close expected error")
	}
	if err := client.Close(context.Background()); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

// TestPeerCloseStopsRun tests remote close handling
func TestPeerCloseStopsRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{"normal closure", websocket.CloseNormalClosure, false},
		{"going away", websocket.CloseGoingAway, false},
		{"protocol error", websocket.CloseProtocolError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newPeer(t)
			client := dialPeer(t, p, nil)
			done := runClient(client, func([]byte) {})

			p.close(tt.code)

			select {
			case err := <-done:
				if (err != nil) != tt.wantErr {
					t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Run() did not return after peer close")
			}
			if client.IsAlive() {
				t.Error("IsAlive() = true after peer close")
			}
		})
	}
}

// TestRunTwice tests that a second receive loop is refused
func TestRunTwice(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	client := dialPeer(t, p, nil)
	runClient(client, func([]byte) {})
	waitFor(t, func() bool {
		client.mu.RLock()
		defer client.mu.RUnlock()
		return client.running
	})

	if err := client.Run(func([]byte) {}); err == nil {
		t.Error("second Run() expected error")
	}
}

// TestSendContextCancelled tests that a full buffer honours the caller's context
func TestSendContextCancelled(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	client := dialPeer(t, p, nil)

	for i := 0; i < sendBufferSize; i++ {
		if err := client.Send(context.Background(), []byte("x")); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := client.Send(ctx, []byte("overflow")); err != context.DeadlineExceeded {
		t.Errorf("Send() on full buffer = %v, want DeadlineExceeded", err)
	}
}

// TestOutboundRateLimit tests that writes are paced by the limiter
func TestOutboundRateLimit(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	client := dialPeer(t, p, &Config{RateLimitConfig: &RateLimitConfig{
		MessagesPerSecond: 20,
		Burst:             1,
		Enabled:           true,
	}})

	for i := 0; i < 5; i++ {
		client.Send(context.Background(), []byte("tick"))
	}

	start := time.Now()
	runClient(client, func([]byte) {})
	waitFor(t, func() bool { return len(p.messages()) == 5 })

	// one token up front, then one every 50ms
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("5 messages took %v, expected pacing of at least 150ms", elapsed)
	}
}

// TestClientID tests that each client has a unique UUID
func TestClientID(t *testing.T) {
	t.Parallel()

	p := newPeer(t)
	first := dialPeer(t, p, nil)
	other := newPeer(t)
	second := dialPeer(t, other, nil)

	if first.ID() == second.ID() {
		t.Errorf("duplicate ID generated: %s", first.ID())
	}
	if _, err := uuid.Parse(first.ID()); err != nil {
		t.Errorf("ID %s is not a valid UUID: %v", first.ID(), err)
	}
	if first.RemoteAddr() == "" {
		t.Error("RemoteAddr() is empty")
	}
}

// TestRateLimiterCreation tests rate limiter creation with different configs
func TestRateLimiterCreation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *RateLimitConfig
		wantNil bool
	}{
		{
			name:    "with rate limiting enabled",
			config:  DefaultRateLimitConfig(),
			wantNil: false,
		},
		{
			name:    "with rate limiting disabled",
			config:  NoRateLimit(),
			wantNil: true,
		},
		{
			name:    "with nil config",
			config:  nil,
			wantNil: true,
		},
		{
			name: "with custom config disabled",
			config: &RateLimitConfig{
				MessagesPerSecond: 10,
				Burst:             20,
				Enabled:           false,
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			limiter := tt.config.limiter()
			if (limiter == nil) != tt.wantNil {
				t.Errorf("rate limiter nil = %v, want nil = %v", limiter == nil, tt.wantNil)
			}
			if limiter != nil && !limiter.Allow() {
				t.Error("first request should be allowed")
			}
		})
	}
}

// TestDefaultRateLimitConfig tests the default rate limit configuration
func TestDefaultRateLimitConfig(t *testing.T) {
	t.Parallel()

	config := DefaultRateLimitConfig()
	if !config.Enabled {
		t.Error("Expected rate limiting to be enabled by default")
	}
	if config.MessagesPerSecond != 100 {
		t.Errorf("MessagesPerSecond = %v, want 100", config.MessagesPerSecond)
	}
	if config.Burst != 200 {
		t.Errorf("Burst = %v, want 200", config.Burst)
	}
}

// TestConfigDefaults tests zero-value fallbacks
func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if cfg.readLimit() != DefaultReadLimit {
		t.Errorf("readLimit() = %d, want %d", cfg.readLimit(), DefaultReadLimit)
	}
	if cfg.handshakeTimeout() != DefaultHandshakeTimeout {
		t.Errorf("handshakeTimeout() = %v, want %v", cfg.handshakeTimeout(), DefaultHandshakeTimeout)
	}

	cfg = &Config{ReadLimit: 512, HandshakeTimeout: time.Second}
	if cfg.readLimit() != 512 || cfg.handshakeTimeout() != time.Second {
		t.Errorf("explicit values not honoured: %d %v", cfg.readLimit(), cfg.handshakeTimeout())
	}
}

// BenchmarkUUIDGeneration benchmarks UUID generation
func BenchmarkUUIDGeneration(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = uuid.New().String()
	}
}
