package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/ecodanctl/internal/errors"
)

const pidPrefix = "ecodanctl"

// Path returns the PID file guarding a serial port, so two daemons never
// talk to the same bus. An empty port yields the generic ecodanctl.pid.
func Path(port string) string {
	name := pidPrefix
	if port != "" {
		name += "-" + strings.Trim(strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(port), "_")
	}
	return filepath.Join(os.TempDir(), name+".pid")
}

// Write writes the current process ID to path, failing with
// ErrAlreadyRunning while another live process holds it.
func Write(path string) error {
	errFactory := errors.New()
	pid := os.Getpid()

	if _, err := os.Stat(path); err == nil {
		// PID file exists, check if the process is running
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		other, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil && other != pid && alive(other) {
			return errFactory.WithData(errors.ErrAlreadyRunning, struct {
				PID  int
				Path string
			}{
				PID:  other,
				Path: path,
			})
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Remove removes the PID file.
func Remove(path string) error {
	errFactory := errors.New()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
