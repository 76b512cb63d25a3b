package ws_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luciancaetano/webchannel/ws"
)

// TestStressConcurrentSessions runs many sessions against one host, each
// issuing calls from several goroutines.
func TestStressConcurrentSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	const (
		sessions        = 20
		callersPerConn  = 5
		callsPerCaller  = 20
		expectedResults = sessions * callersPerConn * callsPerCaller
	)

	h := newHost(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		ok       atomic.Int64
		mismatch atomic.Int64
		wg       sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < sessions; i++ {
		cfg := ws.NewConfig(h.url(), nil)
		cfg.RateLimitConfig = ws.NoRateLimit()
		s, err := ws.Dial(ctx, cfg)
		if err != nil {
			t.Fatalf("session %d: Dial() error = %v", i, err)
		}
		defer s.Close(context.Background())
		if err := s.WaitReady(ctx); err != nil {
			t.Fatalf("session %d: WaitReady() error = %v", i, err)
		}
		core, _ := s.Object("core")

		for c := 0; c < callersPerConn; c++ {
			wg.Add(1)
			go func(session, caller int) {
				defer wg.Done()
				for n := 0; n < callsPerCaller; n++ {
					want := fmt.Sprintf("%d-%d-%d", session, caller, n)
					got, err := core.Call(ctx, "echo", want)
					if err != nil {
						t.Errorf("Call(%s) error = %v", want, err)
						return
					}
					if got != want {
						mismatch.Add(1)
						continue
					}
					ok.Add(1)
				}
			}(i, c)
		}
	}
	wg.Wait()

	elapsed := time.Since(start)
	t.Logf("%d calls in %v (%.0f calls/s)", ok.Load(), elapsed, float64(ok.Load())/elapsed.Seconds())

	if mismatch.Load() > 0 {
		t.Errorf("%d responses resolved the wrong call", mismatch.Load())
	}
	if ok.Load() != expectedResults {
		t.Errorf("completed %d calls, want %d", ok.Load(), expectedResults)
	}
}
