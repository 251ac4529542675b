// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

// Package config loads the settings of the tight command.
package config

import (
	"fmt"
	"os"
	"strings"

	kYaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix starts the names of the environment variables that override settings.
// TIGHT_LOG_LEVEL sets log.level.
const EnvPrefix = "TIGHT_"

// Defaults are the settings in effect when nothing overrides them.
var Defaults = map[string]any{
	"log.level":      "info",
	"log.pretty":     true,
	"log.timeformat": "15:04:05",
	"buffer.read":    64 << 10,
	"buffer.write":   64 << 10,
	"output.suffix":  ".tight",
	"metrics.file":   "",
}

// A Conf is a layered set of settings.
type Conf struct {
	*koanf.Koanf
}

// Load layers, from lowest to highest precedence, the defaults, the YAML
// file at path (if path is not empty) and the environment.
func Load(path string) (*Conf, error) {
	conf := &Conf{Koanf: koanf.New(".")}
	if err := conf.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		return nil, err
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := conf.Load(file.Provider(path), kYaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}
	if err := conf.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}
	return conf, nil
}

// envKey maps TIGHT_BUFFER_READ=4096 to buffer.read.
func envKey(s, v string) (string, any) {
	key := strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
	return key, v
}

func (c *Conf) Bool(path string, defaultValues ...bool) bool {
	if !c.Koanf.Exists(path) && len(defaultValues) > 0 {
		return defaultValues[0]
	}
	return c.Koanf.Bool(path)
}

func (c *Conf) String(path string, defaultValues ...string) string {
	if !c.Koanf.Exists(path) && len(defaultValues) > 0 {
		return defaultValues[0]
	}
	return c.Koanf.String(path)
}

func (c *Conf) Int(path string, defaultValues ...int) int {
	if !c.Koanf.Exists(path) && len(defaultValues) > 0 {
		return defaultValues[0]
	}
	return c.Koanf.Int(path)
}
