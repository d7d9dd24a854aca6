package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const kernelspecFileMode = 0o644

// Kernelspec is the kernel.json document notebook front-ends read to learn
// how to launch this kernel. The {connection_file} placeholder in argv is
// substituted by the front-end at launch time.
type Kernelspec struct {
	Argv          []string          `json:"argv"`
	DisplayName   string            `json:"display_name"`
	Language      string            `json:"language"`
	InterruptMode string            `json:"interrupt_mode,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
}

// NewKernelspec builds the spec for the given executable. The front-end
// invokes it as `<executable> serve --connection <file>`.
func NewKernelspec(executable, displayName, language string) Kernelspec {
	return Kernelspec{
		Argv:        []string{executable, "serve", "--connection", "{connection_file}"},
		DisplayName: displayName,
		Language:    language,
	}
}

// KernelspecDir returns where to install a kernelspec named name for the
// current user, following the front-ends' per-platform search paths.
func KernelspecDir(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	var base string
	switch runtime.GOOS {
	case "darwin":
		base = filepath.Join(home, "Library", "Jupyter", "kernels")
	case "windows":
		appdata := os.Getenv("APPDATA")
		if appdata == "" {
			appdata = filepath.Join(home, "AppData", "Roaming")
		}
		base = filepath.Join(appdata, "jupyter", "kernels")
	default:
		base = filepath.Join(home, ".local", "share", "jupyter", "kernels")
	}
	return filepath.Join(base, name), nil
}

// Install writes dir/kernel.json and returns its path.
func (k Kernelspec) Install(dir string) (string, error) {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return "", fmt.Errorf("config: encode kernelspec: %w", err)
	}
	path := filepath.Join(dir, "kernel.json")
	if err := writeFileAtomic(path, append(data, '\n'), kernelspecFileMode); err != nil {
		return "", fmt.Errorf("config: write kernelspec: %w", err)
	}
	return path, nil
}
