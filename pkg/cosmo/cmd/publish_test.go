package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/auth"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/publish"
)

type fakeAPI struct {
	mu          sync.Mutex
	server      *httptest.Server
	rejectFirst int
	authHeaders []string
	queries     []map[string]string
	uploaded    []byte
	uploadAuth  string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/Prod/generate-upload-url", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		api.authHeaders = append(api.authHeaders, r.Header.Get("Authorization"))
		q := r.URL.Query()
		api.queries = append(api.queries, map[string]string{
			"type":        q.Get("type"),
			"widgetId":    q.Get("widgetId"),
			"version":     q.Get("version"),
			"name":        q.Get("name"),
			"description": q.Get("description"),
		})
		if api.rejectFirst > 0 {
			api.rejectFirst--
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Unauthorized"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"uploadUrl": api.server.URL + "/bucket/widget.zip?sig=1"})
	})
	mux.HandleFunc("/bucket/widget.zip", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		api.uploadAuth = r.Header.Get("Authorization")
		api.uploaded, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	t.Setenv("COSMO_UPLOAD_URL_ENDPOINT", api.server.URL+"/Prod/generate-upload-url")
	return api
}

func writeWidgetProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"@acme/clock","version":"0.0.1","description":"Desk clock"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.config.json"), []byte(`{"version":"1.2.0"}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dist", "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dist", "index.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dist", "assets", "app.js"), []byte("run()"), 0o644))
	return dir
}

func TestPublishCommandEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	api := newFakeAPI(t)
	project := writeWidgetProject(t)
	token := testToken(t, "ada", time.Hour)
	env.loginFn = func(context.Context) (string, error) { return token, nil }

	require.NoError(t, env.run("publish", "--dir", project, "--skip-build"))

	assert.Equal(t, 1, env.logins, "no stored token triggers one login")
	require.Len(t, api.queries, 1)
	assert.Equal(t, map[string]string{
		"type":        "widget",
		"widgetId":    "clock",
		"version":     "1.2.0",
		"name":        "@acme/clock",
		"description": "Desk clock",
	}, api.queries[0])
	assert.Equal(t, []string{"Bearer " + token}, api.authHeaders)
	assert.Empty(t, api.uploadAuth)

	r, err := zip.NewReader(bytes.NewReader(api.uploaded), int64(len(api.uploaded)))
	require.NoError(t, err)
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"assets/", "assets/app.js", "index.html"}, names)

	assert.NoFileExists(t, filepath.Join(project, "clock-1.2.0.zip"))
	out := env.out.String()
	assert.Contains(t, out, "Not authenticated or session expired. Starting login flow...")
	assert.Contains(t, out, "Widget published successfully!")
	assert.Contains(t, out, "Widget ID: clock")
	assert.Contains(t, out, "Version: 1.2.0")
}

func TestPublishCommandReauthenticatesOnceOn401(t *testing.T) {
	env := newTestEnv(t)
	api := newFakeAPI(t)
	api.rejectFirst = 1
	project := writeWidgetProject(t)

	stale := testToken(t, "stale", time.Hour)
	fresh := testToken(t, "fresh", 2*time.Hour)
	require.NoError(t, (&auth.TokenManager{CachePath: env.tokenPath}).SaveToken(stale))
	env.loginFn = func(context.Context) (string, error) { return fresh, nil }

	require.NoError(t, env.run("publish", "--dir", project, "--skip-build"))

	assert.Equal(t, 1, env.logins)
	assert.Equal(t, []string{"Bearer " + stale, "Bearer " + fresh}, api.authHeaders)
	assert.NotEmpty(t, api.uploaded)
	assert.Contains(t, env.out.String(), "Session expired. Re-authenticating...")
	assert.Contains(t, env.out.String(), "Login successful! Retrying publish...")

	stored, _ := storedToken(t, env.tokenPath)
	assert.Equal(t, fresh, stored)
}

func TestPublishCommandFailsAfterSecond401(t *testing.T) {
	env := newTestEnv(t)
	api := newFakeAPI(t)
	api.rejectFirst = 5
	project := writeWidgetProject(t)
	require.NoError(t, (&auth.TokenManager{CachePath: env.tokenPath}).SaveToken(testToken(t, "stale", time.Hour)))
	env.loginFn = func(context.Context) (string, error) { return testToken(t, "fresh", time.Hour), nil }

	err := env.run("publish", "--dir", project, "--skip-build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing failed: failed to get upload URL: request failed (401): Unauthorized")
	assert.Equal(t, 1, env.logins)
	assert.Len(t, api.authHeaders, 2)
	assert.Empty(t, api.uploaded)
}

func TestPublishCommandMissingManifest(t *testing.T) {
	env := newTestEnv(t)
	newFakeAPI(t)
	project := writeWidgetProject(t)
	require.NoError(t, os.Remove(filepath.Join(project, "widget.config.json")))

	err := env.run("publish", "--dir", project, "--skip-build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing failed: widget.config.json not found in")
	assert.Equal(t, 0, env.logins)
}

func TestPublishCommandRunsBuild(t *testing.T) {
	if filepath.Separator != '/' {
		t.Skip("uses a POSIX shell build command")
	}
	env := newTestEnv(t)
	newFakeAPI(t)
	project := writeWidgetProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(project, "dist")))

	err := env.run("publish", "--dir", project, "--dry-run", "--build-command", "mkdir -p dist && echo '<p>hi</p>' > dist/index.html && echo built")
	require.NoError(t, err)
	assert.Contains(t, env.out.String(), "Building widget...")
	assert.Contains(t, env.out.String(), "built")
	assert.FileExists(t, filepath.Join(project, "clock-1.2.0.zip"), "dry run keeps the archive")
	assert.Equal(t, 0, env.logins)
}

func TestPublishCommandBuildFailure(t *testing.T) {
	if filepath.Separator != '/' {
		t.Skip("uses a POSIX shell build command")
	}
	env := newTestEnv(t)
	newFakeAPI(t)
	project := writeWidgetProject(t)
	t.Setenv("COSMO_BUILD_COMMAND", "exit 2")

	err := env.run("publish", "--dir", project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `publishing failed: build command "exit 2" failed`)
}

func TestPublishCommandJSONResult(t *testing.T) {
	env := newTestEnv(t)
	newFakeAPI(t)
	project := writeWidgetProject(t)
	require.NoError(t, (&auth.TokenManager{CachePath: env.tokenPath}).SaveToken(testToken(t, "ada", time.Hour)))

	require.NoError(t, env.run("publish", "--dir", project, "--skip-build", "-o", "json"))

	var result publish.Result
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &result))
	assert.Equal(t, "clock", result.Manifest.ID)
	assert.True(t, result.Uploaded)
	assert.Contains(t, env.errOut.String(), "Widget published successfully!")
}
