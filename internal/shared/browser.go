package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var currentOS = func() string { return runtime.GOOS }

// OpenBrowser launches the system browser at url. The auth commands use
// this to hand the listener off to the service's consent page.
func OpenBrowser(url string) error {
	var name string
	var args []string

	switch os := currentOS(); os {
	case "darwin":
		name = "open"
	case "linux":
		name = "xdg-open"
	case "windows":
		name, args = "cmd", []string{"/c", "start"}
	default:
		return fmt.Errorf("no browser launcher for platform %s", os)
	}

	if err := exec.Command(name, append(args, url)...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
