// Package backend opens the ledger store selected by configuration.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/config"
)

// Kind names a ledger store implementation.
type Kind string

const (
	SQLite Kind = "sqlite"
	Memory Kind = "memory"
)

var kinds = []Kind{SQLite, Memory}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q: must be one of %s", s, strings.Join(Kinds(), ", "))
}

// Kinds lists the supported backend names.
func Kinds() []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// Config selects and locates a store.
type Config struct {
	Kind       Kind
	SQLitePath string
}

// FromAppConfig extracts the store settings from the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	kind, err := ParseKind(cfg.DataBackend)
	if err != nil {
		return Config{}, err
	}
	c := Config{Kind: kind, SQLitePath: cfg.SQLiteDBPath}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Kind == SQLite && c.SQLitePath == "" {
		return errors.New("sqlite backend requires a database path")
	}
	return nil
}
