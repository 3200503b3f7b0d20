package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/tokenbucket"
)

func TestWorkerPool_RunsSubmittedTasks(t *testing.T) {
	pool := newWorkerPool(4, 16)
	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		pool.Submit(func() {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()
	pool.Stop()

	if got := atomic.LoadInt32(&count); got != 50 {
		t.Fatalf("expected 50 tasks to run, got %d", got)
	}
}

func TestWorkerPool_RecoversPanickingTask(t *testing.T) {
	pool := newWorkerPool(2, 4)
	done := make(chan struct{})
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool appears stuck after a panicking task")
	}
	pool.Stop()
}

func TestLoginLimiter_ThrottlesBurst(t *testing.T) {
	limiter := newLoginLimiter(tokenbucket.TokensPerSecond(1), tokenbucket.Tokens(2))
	addr := "10.0.0.1:5555"

	allowed := 0
	for i := 0; i < 5; i++ {
		if limiter.Allow(addr) {
			allowed++
		}
	}
	if allowed > 2 {
		t.Fatalf("expected the burst of 2 to cap allowed attempts, got %d", allowed)
	}
	if allowed == 0 {
		t.Fatal("expected at least the initial burst to be allowed")
	}
}

func TestLoginLimiter_TracksAddressesIndependently(t *testing.T) {
	limiter := newLoginLimiter(tokenbucket.TokensPerSecond(1), tokenbucket.Tokens(1))
	if !limiter.Allow("1.1.1.1:1") {
		t.Fatal("expected the first attempt from address A to be allowed")
	}
	if !limiter.Allow("2.2.2.2:2") {
		t.Fatal("expected address B's bucket to be independent of address A's")
	}
}

type echoHandler struct{ hits int32 }

func (h *echoHandler) HandleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	atomic.AddInt32(&h.hits, 1)
	buf := make([]byte, 4)
	conn.Read(buf)
}

func TestServer_AcceptsConnections(t *testing.T) {
	handler := &echoHandler{}
	srv, err := New(Config{Address: "127.0.0.1:0", Workers: 2}, handler, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(serveDone)
	}()

	// Give the accept loop a moment to bind before dialing.
	var addr string
	for i := 0; i < 50 && addr == ""; i++ {
		time.Sleep(20 * time.Millisecond)
		if srv.listener != nil {
			addr = srv.listener.Addr().String()
		}
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	conn.Write([]byte("ping"))
	conn.Close()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-serveDone:
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}

	if atomic.LoadInt32(&handler.hits) != 1 {
		t.Fatalf("expected exactly one connection handled, got %d", handler.hits)
	}
}
