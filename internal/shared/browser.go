package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var (
	getRuntime = func() string { return runtime.GOOS }
	lookPath   = exec.LookPath
	startCmd   = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// browserCommand resolves the program and arguments that open url.
//
// $BROWSER wins when set; it may hold several colon separated candidates and the first one found on PATH
// is used. Otherwise the platform opener is used.
func browserCommand(url string) ([]string, error) {
	if env := os.Getenv("BROWSER"); env != "" {
		for candidate := range strings.SplitSeq(env, string(os.PathListSeparator)) {
			fields := strings.Fields(candidate)
			if len(fields) == 0 {
				continue
			}
			if _, err := lookPath(fields[0]); err == nil {
				return append(fields, url), nil
			}
		}
	}

	var argv []string
	switch rt := getRuntime(); rt {
	case "darwin":
		argv = []string{"open", url}
	case "linux", "freebsd", "openbsd", "netbsd":
		argv = []string{"xdg-open", url}
	case "windows":
		argv = []string{"rundll32", "url.dll,FileProtocolHandler", url}
	default:
		return nil, fmt.Errorf("%w: no browser opener for %s", ErrDependencyNotFound, rt)
	}

	if _, err := lookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDependencyNotFound, argv[0])
	}
	return argv, nil
}

// OpenBrowser opens url in the user's browser without waiting for it to exit.
//
// Returns [ErrDependencyNotFound] when no opener is installed, in which case the caller should print the URL.
func OpenBrowser(url string) error {
	argv, err := browserCommand(url)
	if err != nil {
		return err
	}

	if err := startCmd(exec.Command(argv[0], argv[1:]...)); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
