package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mochi/pkg/metrics"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func testOptions(url, dir string) Options {
	return Options{
		Enabled:      true,
		URL:          url,
		APIKey:       "sk-test",
		StylePreset:  "anime",
		Width:        512,
		Height:       512,
		Steps:        30,
		CfgScale:     7,
		Timeout:      5 * time.Second,
		StaticDir:    dir,
		Placeholders: 2,
	}
}

func TestGenerateWritesImage(t *testing.T) {
	var got generationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"artifacts": []map[string]any{{"base64": base64.StdEncoding.EncodeToString(pngBytes), "finishReason": "SUCCESS"}},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := New(testOptions(srv.URL, dir), nil, nil)
	url, err := c.Generate(context.Background(), "A cute white dog sleeping")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/static/mochi_"))
	require.True(t, strings.HasSuffix(url, ".png"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/static/")))
	require.NoError(t, err)
	require.Equal(t, pngBytes, data)

	require.Len(t, got.TextPrompts, 1)
	assert.Equal(t, "A cute white dog sleeping", got.TextPrompts[0].Text)
	assert.Equal(t, 1.0, got.TextPrompts[0].Weight)
	assert.Equal(t, 7.0, got.CfgScale)
	assert.Equal(t, 512, got.Width)
	assert.Equal(t, 30, got.Steps)
	assert.Equal(t, 1, got.Samples)
	assert.Equal(t, "anime", got.StylePreset)
}

func TestGenerateErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"invalid key"}`, http.StatusUnauthorized)
		},
		"no artifacts": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"artifacts": []}`))
		},
		"bad base64": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"artifacts": [{"base64": "!!!"}]}`))
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := New(testOptions(srv.URL, t.TempDir()), nil, nil).Generate(context.Background(), "p")
			require.Error(t, err)
		})
	}
}

func TestGenerateOrFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := metrics.New()
	c := New(testOptions(srv.URL, t.TempDir()), nil, m)
	for range 20 {
		url := c.GenerateOrFallback(context.Background(), "p")
		assert.Contains(t, []string{Placeholder(1), Placeholder(2)}, url)
	}

	opts := testOptions(srv.URL, t.TempDir())
	opts.Enabled = false
	disabled := New(opts, nil, m)
	_, err := disabled.Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrDisabled)
	assert.True(t, strings.HasPrefix(disabled.GenerateOrFallback(context.Background(), "p"), "/static/mochi_placeholder_"))

	out, err := testutil.GatherAndCount(m.Registry(), "mochi_image_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestGenerateHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(testOptions(srv.URL, t.TempDir()), nil, nil).Generate(ctx, "p")
	require.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, catalog["sleeping"], Describe("Sleeping"))
	assert.Equal(t, catalog["playing"], Describe("Playing fetch"))
	a := Describe("Zoomies")
	assert.Equal(t, "Mochi is Zoomies", a.Description)
	assert.Equal(t, "A cute white dog Zoomies", a.Prompt)
	assert.Equal(t, "/static/mochi_placeholder_2.jpg", Placeholder(2))
}
