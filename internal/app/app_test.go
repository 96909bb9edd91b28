package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdkbridge/internal/storage"
	logx "sdkbridge/pkg/logx"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func startApp(t *testing.T, body string) *App {
	t.Helper()
	a, err := New(writeConfig(t, t.TempDir(), body))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(ctx, StopRequested)
	})
	return a
}

func call(t *testing.T, a *App, method string, args any) map[string]any {
	t.Helper()
	var body []byte
	if args != nil {
		var err error
		body, err = json.Marshal(args)
		require.NoError(t, err)
	}
	resp, err := http.Post(fmt.Sprintf("http://%s/v1/methods/%s", a.Addr(), method), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAppLaunchOnStartDeliversDeferredLink(t *testing.T) {
	dir := t.TempDir()
	a := startApp(t, fmt.Sprintf(`
server:
  addr: "127.0.0.1:0"
logging:
  level: error
sdk:
  deferred_link: "myapp://promo/7"
  deferred_delay: 10ms
  launch_on_start: true
storage:
  driver: file
  path: %s
metrics:
  enabled: true
`, filepath.Join(dir, "journal.jsonl")))

	require.Eventually(t, func() bool { return a.Bridge().LastDeepLink() == "myapp://promo/7" }, 2*time.Second, 10*time.Millisecond)

	out := call(t, a, "getDeepLinkUrl", nil)
	assert.Equal(t, "myapp://promo/7", out["data"])

	out = call(t, a, "logViewedContent", map[string]any{
		"contentType": "product", "contentData": "shoe", "contentId": "sku-1", "currency": "USD", "price": 9.5,
	})
	assert.Nil(t, out["error"])

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", a.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAppRestoresLastLink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.AppendLink(context.Background(), storage.LinkRecord{URL: "myapp://earlier", Source: "open"}))
	require.NoError(t, st.Close())

	a := startApp(t, fmt.Sprintf(`
server:
  addr: "127.0.0.1:0"
logging:
  level: error
bridge:
  restore_last_link: true
storage:
  driver: sqlite
  path: %s
`, path))

	assert.Equal(t, "myapp://earlier", a.Bridge().LastDeepLink())
	assert.Zero(t, a.Bridge().Queue().Stats().Pending)
}

func TestAppStartFailsOnBusyAddr(t *testing.T) {
	first := startApp(t, "server:\n  addr: \"127.0.0.1:0\"\nlogging:\n  level: error\n")

	a, err := New(writeConfig(t, t.TempDir(), fmt.Sprintf("server:\n  addr: %q\nlogging:\n  level: error\n", first.Addr().String())))
	require.NoError(t, err)
	assert.Error(t, a.Start(context.Background()))
	assert.NoError(t, a.Stop(context.Background(), StopStartFailed))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(writeConfig(t, t.TempDir(), "storage:\n  driver: file\n"))
	assert.Error(t, err)
}

func TestStopIsBoundedAndClean(t *testing.T) {
	a, err := New(writeConfig(t, t.TempDir(), "server:\n  addr: \"127.0.0.1:0\"\nlogging:\n  level: error\n"))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx, StopSignal))
	select {
	case <-a.Done():
	default:
		t.Fatal("app context not canceled after Stop")
	}
}

func TestPrunerRunOnce(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "j.jsonl")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	require.NoError(t, st.AppendEvent(ctx, storage.EventRecord{At: time.Now().Add(-2 * time.Hour), Kind: "searched"}))
	require.NoError(t, st.AppendEvent(ctx, storage.EventRecord{Kind: "searched"}))

	p, err := NewPruner("@hourly", time.Hour, st, logx.Nop())
	require.NoError(t, err)
	n, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1, p.runs.Load())

	p.Start()
	assert.False(t, p.Next().IsZero())
	require.NoError(t, p.Stop(ctx))
}

func TestNewPrunerRejectsBadSchedule(t *testing.T) {
	_, err := NewPruner("not a schedule", time.Hour, nil, logx.Nop())
	assert.Error(t, err)
}
