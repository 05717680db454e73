package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// RunBuild runs the project's build command through the platform shell in
// dir, streaming its output to stdout and stderr.
func RunBuild(ctx context.Context, command, dir string, stdout, stderr io.Writer) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return errors.New("build command is empty")
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build command %q failed: %w", command, err)
	}
	return nil
}
