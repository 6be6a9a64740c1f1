package logging

import (
	"os"
	"path/filepath"
)

// DefaultStateDir returns the default state directory (~/.webrecall/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".webrecall")
	}
	return filepath.Join(home, ".webrecall")
}

// DefaultLogDir returns the default log directory (~/.webrecall/logs/).
func DefaultLogDir() string {
	return filepath.Join(DefaultStateDir(), "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// EnsureLogDir creates the log directory if it does not exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
