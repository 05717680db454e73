package auth

import (
	"errors"
	"os/exec"
	"runtime"
)

// browserCommand returns the command that opens url in the default browser
// on goos.
func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// OpenBrowser starts the platform browser without waiting for it to exit.
func OpenBrowser(url string) error {
	name, args := browserCommand(runtime.GOOS, url)
	if _, err := exec.LookPath(name); err != nil {
		return errors.New("no browser command available")
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
