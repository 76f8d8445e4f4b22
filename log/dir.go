package log

import (
	"os"
	"path/filepath"
	"runtime"
)

// ResolveDir picks the log directory: the -logpath flag, then
// MURMUR_LOG_PATH, then the platform default.
func ResolveDir(flagPath string) (string, error) {
	p := flagPath
	if p == "" {
		p = os.Getenv("MURMUR_LOG_PATH")
	}
	if p == "" {
		return defaultDir()
	}
	return filepath.Abs(p)
}

func defaultDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Logs", "murmur"), nil
	case "windows":
		// %LOCALAPPDATA%
		base, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, "murmur", "logs"), nil
	}
	// $XDG_CONFIG_HOME or ~/.config
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "murmur", "logs"), nil
}
