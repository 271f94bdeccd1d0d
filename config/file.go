package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Duration is a time.Duration that reads "1.5s" style strings or plain
// nanosecond numbers from config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) || strings.HasPrefix(s, `'`) {
		parsed, err := time.ParseDuration(strings.Trim(s, `"'`))
		if err != nil {
			return fmt.Errorf("invalid duration %s: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s: %w", s, err)
	}
	*d = Duration(n)
	return nil
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// ReadConfig reads <name>.<ext> and merges <name>.local.<ext> over it. It
// returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	allNotFound := true

	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(defaultFile) > 0 {
		if err := json5.Unmarshal(defaultFile, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		allNotFound = false
	}

	localPath := filepath.Join(dirname, fmt.Sprintf("%s.local.%s", prefixname, ext))
	localFile, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override T
		if err := json5.Unmarshal(localFile, &override); err != nil {
			return out, fmt.Errorf("parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

// merge lays file values over c. Zero values in the file leave defaults in
// place. File vendor strategies come first, built-ins not redefined by name
// are kept after them.
func (c *Config) merge(file Config) error {
	builtin := c.Vendors
	if err := mergo.Merge(c, file, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	if len(file.Vendors) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(file.Vendors))
	for _, v := range file.Vendors {
		seen[v.Name] = true
	}
	vendors := append([]NamedStrategy{}, file.Vendors...)
	for _, v := range builtin {
		if !seen[v.Name] {
			vendors = append(vendors, v)
		}
	}
	c.Vendors = vendors
	return nil
}
