// Package configfile provides an optional YAML file overlay for connection
// Options, letting deployments keep server lists and TLS/auth settings out
// of source code without requiring a full CLI configuration parser (which
// remains out of scope for this client).
package configfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the subset of connection options that make sense to externalize
// into a config file: server rotation, credentials, and timing knobs.
// Anything more exotic (custom dialers, TLS certificates as in-memory
// structs) stays code-only.
type File struct {
	Servers        []string `yaml:"servers"`
	Name           string   `yaml:"name"`
	User           string   `yaml:"user"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	CredsFile      string   `yaml:"creds_file"`
	NKeySeedFile   string   `yaml:"nkey_seed_file"`
	TLSPolicy      string   `yaml:"tls_policy"`
	ReconnectWait  string   `yaml:"reconnect_wait"`
	MaxReconnects  int      `yaml:"max_reconnects"`
	PingInterval   string   `yaml:"ping_interval"`
	MaxPingsOut    int      `yaml:"max_pings_outstanding"`
}

// Load reads and parses a YAML options overlay from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configfile: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("configfile: parse %s: %w", path, err)
	}

	return &f, nil
}
