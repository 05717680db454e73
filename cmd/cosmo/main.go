package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unicode"
	"unicode/utf8"

	cosmocmd "github.com/buildcosmo/cosmo-cli/pkg/cosmo/cmd"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/output"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cosmocmd.DefaultConfig()
	cfg.Context = ctx
	cfg.OutputWriter = stdout
	cfg.ErrorWriter = stderr
	root := cosmocmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		output.NewPrinter(stderr).Error("%s", failureLine(err))
		return 1
	}
	return 0
}

// failureLine renders err for the terminal: "publishing failed: x" becomes
// "Publishing failed: x".
func failureLine(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
