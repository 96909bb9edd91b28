package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallMethodPrintsData(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"data":"ios 17"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, callMethod(context.Background(), &out, srv.URL, "getPlatformVersion", []byte(`{}`)))
	assert.Equal(t, "/v1/methods/getPlatformVersion", gotPath)
	assert.Equal(t, `{}`, gotBody)
	assert.Equal(t, "\"ios 17\"\n", out.String())
}

func TestCallMethodReturnsEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_arguments","message":"missing","details":"price"}}`))
	}))
	defer srv.Close()

	err := callMethod(context.Background(), io.Discard, strings.TrimPrefix(srv.URL, "http://"), "logViewedContent", nil)
	require.Error(t, err)
	assert.Equal(t, "invalid_arguments: missing (price)", err.Error())
}

func TestCallCommandRejectsBadJSON(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"call", "logSearch", "{nope"})
	root.SetOut(io.Discard)
	assert.ErrorContains(t, root.Execute(), "not valid JSON")
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "sdkbridge "))
}

func TestConfigCheckMasksSecrets(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("sdk:\n  app_id: \"secret-id\"\n"), 0o600))

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "check", "--config", p})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"***"`)
	assert.NotContains(t, out.String(), "secret-id")
}

func TestCallMethodEscapesMethodName(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"error":{"code":"not_implemented","message":"nope"}}`))
	}))
	defer srv.Close()

	err := callMethod(context.Background(), io.Discard, srv.URL, "log/Event?x=1", nil)
	require.Error(t, err)
	assert.Equal(t, "/v1/methods/log%2FEvent%3Fx=1", gotPath)
}
