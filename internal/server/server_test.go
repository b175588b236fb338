package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kvslab/kvs/internal/client"
	"github.com/kvslab/kvs/internal/engine"
	"github.com/kvslab/kvs/internal/engine/kvstore"
	"github.com/kvslab/kvs/pkg/pool"
)

// startTestServer runs a server over a fresh log engine on an
// ephemeral port and returns its address.
func startTestServer(t *testing.T) string {
	t.Helper()

	store, err := kvstore.Open(kvstore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}

	p, err := pool.NewSharedQueue(4)
	if err != nil {
		t.Fatalf("pool.NewSharedQueue: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	srv := New(store, cfg, p, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	t.Cleanup(func() {
		srv.Close()
		p.Close()
		store.Close()
	})
	return srv.Addr()
}

func dialTest(t *testing.T, addr string) *client.Client {
	t.Helper()

	c, err := client.Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServer_SetThenGet(t *testing.T) {
	addr := startTestServer(t)

	if err := dialTest(t, addr).Set("a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := dialTest(t, addr).Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v, want %q, true", v, ok, "1")
	}
}

func TestServer_GetMissingKey(t *testing.T) {
	addr := startTestServer(t)

	_, ok, err := dialTest(t, addr).Get("missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("Get(missing) should be absent")
	}
}

func TestServer_RemoveMissingKeyIsKeyNotFound(t *testing.T) {
	addr := startTestServer(t)

	err := dialTest(t, addr).Remove("missing")
	if !errors.Is(err, engine.ErrKeyNotFound) {
		t.Fatalf("Remove(missing) = %v, want ErrKeyNotFound", err)
	}
}

func TestServer_SetRemoveGet(t *testing.T) {
	addr := startTestServer(t)

	if err := dialTest(t, addr).Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := dialTest(t, addr).Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, ok, err := dialTest(t, addr).Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("Get after Remove should be absent")
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	addr := startTestServer(t)

	const perClient = 100

	var wg sync.WaitGroup
	for _, kv := range []struct{ key, value string }{
		{"x", "A"},
		{"y", "B"},
	} {
		wg.Add(1)
		go func(key, value string) {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				c, err := client.Dial(addr)
				if err != nil {
					t.Errorf("Dial: %v", err)
					return
				}
				err = c.Set(key, value)
				c.Close()
				if err != nil {
					t.Errorf("Set(%s): %v", key, err)
					return
				}
			}
		}(kv.key, kv.value)
	}
	wg.Wait()

	if v, ok, err := dialTest(t, addr).Get("x"); err != nil || !ok || v != "A" {
		t.Fatalf("Get(x) = %q, %v, %v, want %q", v, ok, err, "A")
	}
	if v, ok, err := dialTest(t, addr).Get("y"); err != nil || !ok || v != "B" {
		t.Fatalf("Get(y) = %q, %v, %v, want %q", v, ok, err, "B")
	}
}

func TestServer_MalformedRequestAbortsOnlyThatConnection(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	// Valid length prefix, invalid JSON payload.
	conn.Write([]byte{0, 0, 0, 3, '{', '{', '{'})
	conn.Close()

	// The server must keep serving other clients.
	if err := dialTest(t, addr).Set("k", "v"); err != nil {
		t.Fatalf("Set after malformed request: %v", err)
	}
}

func TestServer_StopUnblocksAccept(t *testing.T) {
	store, err := kvstore.Open(kvstore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	defer store.Close()

	p := pool.NewNaive()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	srv := New(store, cfg, p, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()

	srv.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("accept loop did not exit after Stop")
	}

	// Stop is idempotent.
	srv.Stop()
}

func TestServer_BindFailure(t *testing.T) {
	addr := startTestServer(t)

	store, err := kvstore.Open(kvstore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	defer store.Close()

	cfg := DefaultConfig()
	cfg.Addr = addr // already bound

	srv := New(store, cfg, pool.NewNaive(), nil)
	if err := srv.Start(); err == nil {
		srv.Close()
		t.Fatal("Start on a bound address should fail")
	}
}

func TestServer_ManyRequestsThroughPool(t *testing.T) {
	addr := startTestServer(t)

	for i := 0; i < 50; i++ {
		c := dialTest(t, addr)
		if err := c.Set(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("Set #%d: %v", i, err)
		}
	}
	for i := 0; i < 50; i++ {
		v, ok, err := dialTest(t, addr).Get(fmt.Sprintf("k%d", i))
		if err != nil || !ok || v != fmt.Sprintf("v%d", i) {
			t.Fatalf("Get(k%d) = %q, %v, %v", i, v, ok, err)
		}
	}
}
