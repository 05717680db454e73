package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultCallbackHost = "localhost"
	DefaultFlowTimeout  = 5 * time.Minute
)

var ErrAuthTimeout = errors.New("authentication timeout - please try again")

const successPage = `<!DOCTYPE html>
<html>
<head><title>Cosmo CLI - Authentication Successful</title></head>
<body style="font-family: system-ui; text-align: center; padding: 50px;">
    <h1>&#x2705; Authentication Successful</h1>
    <p>You can close this tab and return to the terminal.</p>
</body>
</html>
`

type FlowConfig struct {
	// AuthURL is the hosted login page. The callback address is appended as
	// the callback query parameter.
	AuthURL string
	Host    string
	// Port 0 picks a free port.
	Port    int
	Timeout time.Duration
	Output  io.Writer
	// OpenBrowser defaults to OpenBrowser.
	OpenBrowser func(url string) error
	Logger      *zap.SugaredLogger
}

// BuildAuthURL appends the callback address to the hosted login page URL.
func BuildAuthURL(authURL, callbackURL string) (string, error) {
	parsed, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("invalid auth url: %w", err)
	}
	query := parsed.Query()
	query.Set("callback", callbackURL)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// StartAuthFlow sends the user to the hosted login page and waits for it to
// redirect back to a local listener with a token query parameter. Requests
// without a token get a 400 and the listener keeps serving. The flow ends
// with the first token, ErrAuthTimeout, or the context's error.
func StartAuthFlow(ctx context.Context, cfg FlowConfig) (string, error) {
	if cfg.AuthURL == "" {
		return "", errors.New("auth url is required")
	}
	host := cfg.Host
	if host == "" {
		host = DefaultCallbackHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultFlowTimeout
	}
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}
	openBrowser := cfg.OpenBrowser
	if openBrowser == nil {
		openBrowser = OpenBrowser
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return "", fmt.Errorf("failed to start callback listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	callbackURL := fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))
	authURL, err := BuildAuthURL(cfg.AuthURL, callbackURL)
	if err != nil {
		_ = listener.Close()
		return "", err
	}

	tokenCh := make(chan string, 1)
	serveErrCh := make(chan error, 1)

	server := &http.Server{
		Handler:           newCallbackHandler(log.Desugar(), tokenCh),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
	}()

	log.Debugw("Callback listener started", "address", listener.Addr().String())
	if err := openBrowser(authURL); err != nil {
		log.Debugw("Failed to open browser", "error", err)
		_, _ = fmt.Fprintf(out, "\nPlease open this URL in your browser:\n%s\n\n", authURL)
	} else {
		_, _ = fmt.Fprintf(out, "If your browser did not open, visit:\n%s\n", authURL)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case token := <-tokenCh:
		log.Debugw("Received token on callback listener")
		return token, nil
	case err := <-serveErrCh:
		return "", fmt.Errorf("callback listener failed: %w", err)
	case <-timer.C:
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func newCallbackHandler(log *zap.Logger, tokenCh chan<- string) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		ginzap.GinzapWithConfig(log, &ginzap.Config{
			TimeFormat:   time.RFC3339,
			UTC:          true,
			DefaultLevel: zapcore.InfoLevel,
			// The query carries the bearer token; those requests are
			// logged by the handler without it.
			Skipper: func(c *gin.Context) bool {
				return c.Query("token") != ""
			},
		}),
		ginzap.RecoveryWithZap(log, true),
	)
	engine.NoRoute(func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.String(http.StatusBadRequest, "Invalid request")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(successPage))
		log.Info(c.Request.URL.Path,
			zap.Int("status", http.StatusOK),
			zap.String("method", c.Request.Method),
			zap.String("query", "token=REDACTED"),
			zap.String("ip", c.ClientIP()),
		)
		select {
		case tokenCh <- token:
		default:
		}
	})
	return engine
}
