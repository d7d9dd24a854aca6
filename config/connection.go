// Package config reads and writes the files a kernel deployment touches:
// the JSON connection file front-ends use to find the kernel's sockets, the
// kernel's own YAML settings, and the kernelspec directory that registers
// the kernel with notebook front-ends.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/quillkernel/quill/transport"
)

const (
	connectionFileMode = 0o600
	configDirMode      = 0o755
)

// Connection mirrors the connection file: where each channel is bound and
// which transport carries it. Signature fields present in files written by
// other runtimes are tolerated and ignored, since message signing is not
// part of this kernel's protocol surface.
type Connection struct {
	Transport string `json:"transport" mapstructure:"transport"`
	IP        string `json:"ip" mapstructure:"ip"`
	Shell     int    `json:"shell_port" mapstructure:"shell_port"`
	Control   int    `json:"control_port" mapstructure:"control_port"`
	IOPub     int    `json:"iopub_port" mapstructure:"iopub_port"`
	Stdin     int    `json:"stdin_port" mapstructure:"stdin_port"`
	Heartbeat int    `json:"hb_port" mapstructure:"hb_port"`

	// KernelName is informational; front-ends write it, nothing reads it.
	KernelName string `json:"kernel_name,omitempty" mapstructure:"kernel_name"`
}

// ReadConnection loads a connection file. The path must exist; a kernel
// launched against a named connection file has nothing sensible to fall
// back to.
func ReadConnection(path string) (Connection, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("transport", "tcp")
	v.SetDefault("ip", "127.0.0.1")

	if err := v.ReadInConfig(); err != nil {
		return Connection{}, fmt.Errorf("config: read connection file: %w", err)
	}

	var c Connection
	if err := v.Unmarshal(&c); err != nil {
		return Connection{}, fmt.Errorf("config: decode connection file: %w", err)
	}
	return c, nil
}

// ConnectionFromPorts captures a running transport's bound ports, ready to
// be written for front-ends to discover.
func ConnectionFromPorts(table transport.PortTable) Connection {
	return Connection{
		Transport: table.Transport,
		IP:        table.IP,
		Shell:     table.Shell,
		Control:   table.Control,
		IOPub:     table.IOPub,
		Stdin:     table.Stdin,
		Heartbeat: table.Heartbeat,
	}
}

// PortTable converts the connection into the transport layer's port table.
func (c Connection) PortTable() transport.PortTable {
	return transport.PortTable{
		Transport: c.Transport,
		IP:        c.IP,
		Shell:     c.Shell,
		Control:   c.Control,
		IOPub:     c.IOPub,
		Stdin:     c.Stdin,
		Heartbeat: c.Heartbeat,
	}
}

// Validate reports whether the connection names a transport this kernel can
// serve.
func (c Connection) Validate() error {
	switch c.Transport {
	case "tcp", "ws":
		return nil
	}
	return fmt.Errorf("config: unsupported transport %q", c.Transport)
}

// Write stores the connection file. Connection files can carry credentials
// in other runtimes, so the file is written owner-only.
func (c Connection) Write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode connection file: %w", err)
	}
	if err := writeFileAtomic(path, append(data, '\n'), connectionFileMode); err != nil {
		return fmt.Errorf("config: write connection file: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path via a temp file and rename so readers never
// observe a half-written file.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	cleanup = false
	return nil
}
