// Package config loads the server's configuration file: a flat
// key/value document recognising port, root_username, root_password,
// data_directory, encryption_enabled, encryption_key, and
// autosave_interval. Two syntaxes are accepted: plain "key=value" lines
// (spec.md's own described format) and YAML's "key: value" mapping
// (via gopkg.in/yaml.v3, the config-loading library the pack's
// SimonWaldherr-tinySQL already depends on) so an operator can write
// either a shell-style env file or a proper YAML document.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/francodb/francodb/pkg/errors"
)

// Config is the fully parsed, type-checked server configuration.
type Config struct {
	Port              int           `yaml:"port"`
	RootUsername      string        `yaml:"root_username"`
	RootPassword      string        `yaml:"root_password"`
	DataDirectory     string        `yaml:"data_directory"`
	EncryptionEnabled bool          `yaml:"encryption_enabled"`
	EncryptionKey     string        `yaml:"encryption_key"`
	AutosaveInterval  time.Duration `yaml:"-"`
}

// Defaults mirror a fresh single-node deployment: the engine runs, but
// with no root account provisioned until one is configured.
func defaults() Config {
	return Config{
		Port:             7700,
		DataDirectory:    "./data",
		AutosaveInterval: 5 * time.Minute,
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.IOError, err, "reading configuration file")
	}
	return Parse(data)
}

// Parse parses configuration file content already read into memory.
// It first tries the plain "key=value" line format; if that finds no
// recognised keys at all (e.g. the file is actually YAML), it falls
// back to a full YAML unmarshal of a string-keyed map.
func Parse(data []byte) (Config, error) {
	raw, err := parseKeyValueLines(data)
	if err != nil {
		return Config{}, err
	}
	if len(raw) == 0 {
		raw, err = parseYAMLMap(data)
		if err != nil {
			return Config{}, err
		}
	}
	return fromRawMap(raw)
}

func parseKeyValueLines(data []byte) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := strings.IndexByte(line, '=')
		if sep < 0 {
			// Not a key=value line; this file is not in the plain format.
			return nil, nil
		}
		key := strings.TrimSpace(line[:sep])
		val := strings.TrimSpace(line[sep+1:])
		val = strings.Trim(val, `"'`)
		out[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ParseError, err, "scanning configuration file")
	}
	return out, nil
}

func parseYAMLMap(data []byte) (map[string]string, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ParseError, err, "parsing configuration file as YAML")
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

func fromRawMap(raw map[string]string) (Config, error) {
	cfg := defaults()

	if v, ok := raw["port"]; ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Newf(errors.ParseError, "port: %q is not an integer", v)
		}
		cfg.Port = port
	}
	if v, ok := raw["root_username"]; ok {
		cfg.RootUsername = v
	}
	if v, ok := raw["root_password"]; ok {
		cfg.RootPassword = v
	}
	if v, ok := raw["data_directory"]; ok {
		cfg.DataDirectory = v
	}
	if v, ok := raw["encryption_enabled"]; ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.Newf(errors.ParseError, "encryption_enabled: %q is not a boolean", v)
		}
		cfg.EncryptionEnabled = enabled
	}
	if v, ok := raw["encryption_key"]; ok {
		cfg.EncryptionKey = v
	}
	if v, ok := raw["autosave_interval"]; ok {
		dur, err := parseDuration(v)
		if err != nil {
			return Config{}, err
		}
		cfg.AutosaveInterval = dur
	}

	if cfg.EncryptionEnabled && cfg.EncryptionKey == "" {
		return Config{}, errors.New(errors.ParseError, "encryption_enabled is true but encryption_key is empty")
	}
	return cfg, nil
}

// parseDuration accepts either a Go duration string ("30s", "5m") or a
// bare integer, which is interpreted as whole seconds to match
// spec.md's autosave_interval being described as a plain number.
func parseDuration(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Newf(errors.ParseError, "autosave_interval: %q is neither a duration nor an integer", v)
	}
	return time.Duration(secs) * time.Second, nil
}
