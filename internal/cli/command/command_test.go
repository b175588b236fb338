package command

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/kvslab/kvs/internal/engine/kvstore"
	"github.com/kvslab/kvs/internal/server"
	"github.com/kvslab/kvs/pkg/pool"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	store, err := kvstore.Open(kvstore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}

	p, err := pool.NewSharedQueue(2)
	if err != nil {
		t.Fatalf("pool.NewSharedQueue: %v", err)
	}

	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	srv := server.New(store, cfg, p, nil)
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

// runApp runs the client CLI and captures stdout and the returned
// error, without letting an ExitCoder terminate the test process.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"kvs-client"}, args...))
	return out.String(), err
}

func TestSetThenGet(t *testing.T) {
	addr := startTestServer(t)

	if _, err := runApp(t, "set", "city", "oslo", "--addr", addr); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err := runApp(t, "get", "city", "--addr", addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "oslo" {
		t.Fatalf("get output = %q, want %q", out, "oslo")
	}
}

func TestGetMissingKeyPrintsKeyNotFound(t *testing.T) {
	addr := startTestServer(t)

	out, err := runApp(t, "get", "missing", "--addr", addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "Key not found" {
		t.Fatalf("get output = %q, want %q", out, "Key not found")
	}
}

func TestRmMissingKeyExitsNonZero(t *testing.T) {
	addr := startTestServer(t)

	_, err := runApp(t, "rm", "missing", "--addr", addr)
	if err == nil {
		t.Fatal("rm of a missing key should fail")
	}

	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) {
		t.Fatalf("error is %T, want cli.ExitCoder", err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(err.Error(), "Key not found") {
		t.Fatalf("error = %q, want Key not found", err)
	}
}

func TestRmExistingKey(t *testing.T) {
	addr := startTestServer(t)

	if _, err := runApp(t, "set", "k", "v", "--addr", addr); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := runApp(t, "rm", "k", "--addr", addr); err != nil {
		t.Fatalf("rm: %v", err)
	}

	out, err := runApp(t, "get", "k", "--addr", addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "Key not found" {
		t.Fatalf("get output = %q, want %q", out, "Key not found")
	}
}

func TestWrongArgumentCount(t *testing.T) {
	_, err := runApp(t, "set", "only-key")
	if err == nil {
		t.Fatal("set with one argument should fail")
	}

	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("err = %v, want exit code 1", err)
	}
}
