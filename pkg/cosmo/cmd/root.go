package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/auth"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/config"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/output"
	"github.com/buildcosmo/cosmo-cli/pkg/system"
)

type Config struct {
	ConfigPath   string
	TokenPath    string
	OutputWriter io.Writer
	// ErrorWriter receives diagnostics. Defaults to stderr.
	ErrorWriter io.Writer
	// Context is the parent of every command context, e.g. one cancelled
	// on SIGINT.
	Context context.Context
	// OpenBrowser replaces the system browser launcher.
	OpenBrowser func(url string) error
	// Login replaces the browser login flow entirely.
	Login auth.LoginFunc
}

type runtimeState struct {
	configPath           string
	tokenPath            string
	cfg                  *config.Config
	outputFormat         string
	tokenStorageOverride string
	verbose              bool
	writer               io.Writer
	errWriter            io.Writer
	log                  *zap.SugaredLogger
	openBrowser          func(url string) error
	login                auth.LoginFunc
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		TokenPath:    config.DefaultTokenPath(),
		OutputWriter: os.Stdout,
		ErrorWriter:  os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:  cfg.ConfigPath,
		tokenPath:   cfg.TokenPath,
		writer:      cfg.OutputWriter,
		errWriter:   cfg.ErrorWriter,
		openBrowser: cfg.OpenBrowser,
		login:       cfg.Login,
	}

	root := &cobra.Command{
		Use:   "cosmo",
		Short: "Build and publish Cosmo widgets",
		Long: heredoc.Doc(`
			cosmo builds a widget project, packages its dist directory and
			publishes it to the Cosmo platform.

			Run it from the widget project root:

			  cosmo login      sign in through the browser
			  cosmo publish    build, package and upload the widget
			  cosmo logout     remove the stored token
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.tokenPath == "" {
				rt.tokenPath = config.DefaultTokenPath()
			}
			if rt.tokenStorageOverride == "" {
				rt.tokenStorageOverride = os.Getenv("COSMO_TOKEN_STORAGE")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("COSMO_VERBOSE"), "true")
			}
			if err := rt.setupLogger(); err != nil {
				return err
			}

			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			if cmd.Parent() != nil && cmd.Parent().Name() == "config" && cmd.Name() != "view" {
				return nil
			}
			return rt.EnsureConfigLoaded()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to settings file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: file or keychain")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging with correlation IDs")

	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	root.SetContext(context.WithValue(parent, runtimeKey{}, rt))

	root.AddCommand(
		NewPublishCommand(),
		NewLoginCommand(),
		NewLogoutCommand(),
		NewStatusCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) setupLogger() error {
	if rt.log != nil {
		return nil
	}
	if rt.errWriter != os.Stderr {
		rt.log = system.NewWriterLogger(rt.errWriter, rt.verbose)
		return nil
	}
	log, err := system.NewCLILogger(rt.verbose)
	if err != nil {
		return err
	}
	rt.log = log
	return nil
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log == nil {
		return zap.NewNop().Sugar()
	}
	return rt.log
}

// EnsureConfigLoaded reads the settings file, falling back to defaults when
// it does not exist, then applies environment and flag overrides.
func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.LoadOrDefault(rt.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if rt.tokenStorageOverride != "" {
		cfg.TokenStorage = rt.tokenStorageOverride
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg
	rt.Logger().Debugw("Loaded settings", "path", rt.configPath, "uploadEndpoint", cfg.UploadEndpoint, "tokenStorage", cfg.TokenStorage)
	return nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	return output.ParseFormat(rt.outputFormat)
}

// Printer writes progress lines. With structured output they move to the
// error writer so stdout stays parseable.
func (rt *runtimeState) Printer() *output.Printer {
	if format, err := rt.OutputFormat(); err == nil && format != output.FormatTable {
		return output.NewPrinter(rt.ErrWriter())
	}
	return output.NewPrinter(rt.Writer())
}

func (rt *runtimeState) TokenManager() *auth.TokenManager {
	mode := config.TokenStorageFile
	if rt.cfg != nil && rt.cfg.TokenStorage != "" {
		mode = rt.cfg.TokenStorage
	}
	return &auth.TokenManager{CachePath: rt.tokenPath, StorageMode: mode}
}

// Session wires the token store to the browser login flow.
func (rt *runtimeState) Session() (*auth.Session, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	login := rt.login
	if login == nil {
		timeout, err := rt.cfg.LoginTimeout()
		if err != nil {
			return nil, err
		}
		flow := auth.FlowConfig{
			AuthURL:     rt.cfg.AuthURL,
			Port:        rt.cfg.CallbackPort,
			Timeout:     timeout,
			Output:      rt.Printer().Writer(),
			OpenBrowser: rt.openBrowser,
			Logger:      rt.Logger(),
		}
		login = func(ctx context.Context) (string, error) {
			return auth.StartAuthFlow(ctx, flow)
		}
	}
	return &auth.Session{Store: rt.TokenManager(), Login: login}, nil
}
