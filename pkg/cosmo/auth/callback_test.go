package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/buildcosmo/cosmo-cli/pkg/system"
)

// callbackFrom extracts the local callback address the flow put into the
// auth URL.
func callbackFrom(t *testing.T, authURL string) string {
	t.Helper()
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	callback := parsed.Query().Get("callback")
	require.NotEmpty(t, callback)
	return callback
}

func get(t *testing.T, target string) (int, string) {
	t.Helper()
	resp, err := http.Get(target)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestBuildAuthURL(t *testing.T) {
	got, err := BuildAuthURL("https://buildcosmo.com/cli-auth", "http://localhost:8789")
	require.NoError(t, err)

	parsed, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "buildcosmo.com", parsed.Host)
	assert.Equal(t, "/cli-auth", parsed.Path)
	assert.Equal(t, "http://localhost:8789", parsed.Query().Get("callback"))
}

func TestBuildAuthURLKeepsExistingQuery(t *testing.T) {
	got, err := BuildAuthURL("https://auth.example.com/login?env=staging", "http://localhost:1234")
	require.NoError(t, err)

	parsed, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "staging", parsed.Query().Get("env"))
	assert.Equal(t, "http://localhost:1234", parsed.Query().Get("callback"))
}

func TestStartAuthFlow_ResolvesWithToken(t *testing.T) {
	var status int
	var body string
	out := &bytes.Buffer{}

	token, err := StartAuthFlow(context.Background(), FlowConfig{
		AuthURL: "https://buildcosmo.com/cli-auth",
		Port:    0,
		Timeout: 5 * time.Second,
		Output:  out,
		OpenBrowser: func(authURL string) error {
			status, body = get(t, callbackFrom(t, authURL)+"/?token=jwt-from-browser")
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "jwt-from-browser", token)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Authentication Successful")
	assert.Contains(t, out.String(), "https://buildcosmo.com/cli-auth?callback=")
}

func TestStartAuthFlow_RejectsRequestsWithoutToken(t *testing.T) {
	var statuses []int
	var bodies []string

	token, err := StartAuthFlow(context.Background(), FlowConfig{
		AuthURL: "https://buildcosmo.com/cli-auth",
		Timeout: 5 * time.Second,
		OpenBrowser: func(authURL string) error {
			callback := callbackFrom(t, authURL)
			for _, target := range []string{callback + "/", callback + "/favicon.ico", callback + "/?token="} {
				status, body := get(t, target)
				statuses = append(statuses, status)
				bodies = append(bodies, body)
			}
			status, body := get(t, callback+"/?token=late-token")
			statuses = append(statuses, status)
			bodies = append(bodies, body)
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "late-token", token)
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest, http.StatusOK}, statuses)
	assert.Equal(t, "Invalid request", bodies[0])
}

func TestStartAuthFlow_Timeout(t *testing.T) {
	start := time.Now()
	_, err := StartAuthFlow(context.Background(), FlowConfig{
		AuthURL:     "https://buildcosmo.com/cli-auth",
		Timeout:     100 * time.Millisecond,
		OpenBrowser: func(string) error { return nil },
	})

	require.ErrorIs(t, err, ErrAuthTimeout)
	assert.Equal(t, "authentication timeout - please try again", err.Error())
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestStartAuthFlow_DefaultTimeoutIsFiveMinutes(t *testing.T) {
	assert.Equal(t, 5*time.Minute, DefaultFlowTimeout)
}

func TestStartAuthFlow_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := StartAuthFlow(ctx, FlowConfig{
		AuthURL: "https://buildcosmo.com/cli-auth",
		Timeout: 5 * time.Second,
		OpenBrowser: func(string) error {
			cancel()
			return nil
		},
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestStartAuthFlow_BrowserFailurePrintsURL(t *testing.T) {
	out := &bytes.Buffer{}
	_, err := StartAuthFlow(context.Background(), FlowConfig{
		AuthURL:     "https://buildcosmo.com/cli-auth",
		Timeout:     50 * time.Millisecond,
		Output:      out,
		OpenBrowser: func(string) error { return errors.New("no browser") },
	})
	require.ErrorIs(t, err, ErrAuthTimeout)
	assert.Contains(t, out.String(), "Please open this URL in your browser")
	assert.Contains(t, out.String(), "https://buildcosmo.com/cli-auth?callback=")
}

func TestStartAuthFlow_ListenerClosedAfterToken(t *testing.T) {
	var callback string
	_, err := StartAuthFlow(context.Background(), FlowConfig{
		AuthURL: "https://buildcosmo.com/cli-auth",
		Timeout: 5 * time.Second,
		OpenBrowser: func(authURL string) error {
			callback = callbackFrom(t, authURL)
			get(t, callback+"/?token=t")
			return nil
		},
	})
	require.NoError(t, err)

	parsed, err := url.Parse(callback)
	require.NoError(t, err)
	conn, err := net.DialTimeout("tcp", parsed.Host, time.Second)
	if err == nil {
		_ = conn.Close()
	}
	require.Error(t, err, "listener should be closed once the flow settles")
}

func TestStartAuthFlow_PortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer func() {
		_ = listener.Close()
	}()
	port := listener.Addr().(*net.TCPAddr).Port

	_, err = StartAuthFlow(context.Background(), FlowConfig{
		AuthURL:     "https://buildcosmo.com/cli-auth",
		Port:        port,
		Timeout:     time.Second,
		OpenBrowser: func(string) error { return nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start callback listener")
}

func TestStartAuthFlow_RequiresAuthURL(t *testing.T) {
	_, err := StartAuthFlow(context.Background(), FlowConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth url is required")
}

func TestBrowserCommand(t *testing.T) {
	name, args := browserCommand("darwin", "https://x")
	assert.Equal(t, "open", name)
	assert.Equal(t, []string{"https://x"}, args)

	name, args = browserCommand("windows", "https://x")
	assert.Equal(t, "rundll32", name)
	assert.Equal(t, []string{"url.dll,FileProtocolHandler", "https://x"}, args)

	name, _ = browserCommand("linux", "https://x")
	assert.Equal(t, "xdg-open", name)
}

func TestStartAuthFlow_DoesNotLogToken(t *testing.T) {
	log, logs := system.NewObservedLogger(zapcore.DebugLevel)
	const secret = "SECRET-JWT"

	token, err := StartAuthFlow(context.Background(), FlowConfig{
		AuthURL: "https://buildcosmo.com/cli-auth",
		Timeout: 5 * time.Second,
		Logger:  log,
		OpenBrowser: func(authURL string) error {
			callback := callbackFrom(t, authURL)
			status, _ := get(t, callback+"/favicon.ico")
			assert.Equal(t, http.StatusBadRequest, status)
			status, _ = get(t, callback+"/?token="+secret)
			assert.Equal(t, http.StatusOK, status)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, secret, token)

	var callbackEntries int
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, secret)
		for key, value := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(value), secret, "field %s leaks the token", key)
		}
		if entry.Message == "/" {
			callbackEntries++
			assert.Equal(t, "token=REDACTED", entry.ContextMap()["query"])
		}
	}
	assert.Equal(t, 1, callbackEntries, "the token request is still logged once")
	assert.NotEmpty(t, logs.FilterMessage("/favicon.ico").All(), "requests without a token keep the request log")
}
