package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dreamware/flights/internal/client"
	"github.com/dreamware/flights/internal/config"
	"github.com/dreamware/flights/internal/segment"
)

// startServer runs serve on a random local port and returns its base URL
func startServer(t *testing.T, cfgJSON string) string {
	t.Helper()
	cfg, err := config.Parse([]byte(cfgJSON), ".json")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, ln, zaptest.NewLogger(t)) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return "http://" + ln.Addr().String()
}

func TestServe(t *testing.T) {
	base := startServer(t, `{"databases":[{"name":"legs","path":":memory:"}]}`)
	c := client.New(base)
	ctx := context.Background()

	got, err := c.Consolidate(ctx, "legs", "trip",
		segment.List{segment.New("C", "D"), segment.New("A", "B"), segment.New("B", "C")})
	require.NoError(t, err)
	assert.Equal(t, segment.List{segment.New("A", "D")}, got)

	_, err = c.Consolidate(ctx, "db", "trip", segment.List{segment.New("A", "B")})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "not found", apiErr.Message)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legs", health["database"])
}

func TestServeBadgerStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db.kv")
	base := startServer(t, `{"databases":[{"name":"db","path":"`+filepath.ToSlash(dir)+`"}]}`)

	got, err := client.New(base).PutRaw(context.Background(), "db", "k", []byte("'X''Y'\n"))
	require.NoError(t, err)
	assert.Equal(t, segment.List{segment.New("X", "Y")}, got)

	_, err = os.Stat(dir)
	assert.NoError(t, err, "badger directory is created")
}

func TestPutCommand(t *testing.T) {
	base := startServer(t, `{"databases":[{"name":"db","path":":memory:"}]}`)

	file := filepath.Join(t.TempDir(), "legs.txt")
	require.NoError(t, os.WriteFile(file, []byte("'SFO''ATL''ATL''GSO'\n"), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"put", "--server", base, "--db", "db", "--key", "trip", file})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "SFO\tGSO\n", out.String())

	out.Reset()
	cmd = newRootCmd(&out)
	cmd.SetIn(strings.NewReader("'A''B'\n"))
	cmd.SetArgs([]string{"put", "--server", base, "-"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "A\tB\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "flights "+version+"\n", out.String())
}

func TestRunServeRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"databases":[{"path":"x"}]}`), 0o644))

	err := runServe(context.Background(), &serveOptions{
		configPath: path,
		bindAddr:   "127.0.0.1",
		bindPort:   "0",
		logLevel:   "error",
		logFormat:  "json",
	})
	assert.Error(t, err)
}
