package command

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rolloutkv/internal/engine"
	"github.com/yndnr/rolloutkv/internal/server/httpserver"
	storagepkg "github.com/yndnr/rolloutkv/internal/storage"
	"github.com/yndnr/rolloutkv/pkg/token"
)

const testAdminKey = "rkak_cli_test"

// testEnv is a running server plus the CLI configuration file used
// against it.
type testEnv struct {
	server     *httptest.Server
	configPath string
}

// newTestEnv starts an in-process server over memory backends.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := token.Hash(testAdminKey)
	if err != nil {
		t.Fatal(err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := engine.NewRegistry(func(string) (storagepkg.Backend, error) {
		return storagepkg.NewMemoryBackend(), nil
	}, engine.WithLogger(quiet))
	t.Cleanup(func() { registry.Close() })

	srv := httptest.NewServer(httpserver.NewRouter(&httpserver.RouterConfig{
		Registry:     registry,
		Logger:       quiet,
		AdminKeyHash: hash,
	}))
	t.Cleanup(srv.Close)

	return &testEnv{
		server:     srv,
		configPath: filepath.Join(t.TempDir(), "cli.yaml"),
	}
}

// run executes the CLI against the test server and returns its stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runWithInput(t, "", args...)
}

// runWithInput is run with stdin set to input.
func (e *testEnv) runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(input)
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := []string{"rolloutkv-cli", "--config", e.configPath, "--server", e.server.URL}
	full = append(full, args...)
	err := app.Run(full)
	return stdout.String(), err
}

// mustRun is run that fails the test on error.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("rolloutkv-cli %s: %v", strings.Join(args, " "), err)
	}
	return out
}
