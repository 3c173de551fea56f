package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the primary config file name.
const ConfigFileName = "dbkit.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "dbkit.yml"

// envPrefix namespaces environment overrides, e.g.
// DBKIT_DEFAULT_CONNECTION=local.
const envPrefix = "DBKIT_"

// Load resolves configuration with the usual precedence:
// defaults < config file < environment < flags. An explicit path that
// does not exist is an error; a missing discovered file is not.
func Load(explicitPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// Defaults.
	if err := k.Load(confmap.Provider(map[string]any{
		"schema_cache_ttl": 5 * time.Minute,
		"migrations_dir":   "migrations",
	}, "."), nil); err != nil {
		return nil, err
	}

	path := findConfigFile(explicitPath)
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, err
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// DBKIT_SCHEMA_CACHE_TTL -> schema_cache_ttl. Nested keys use double
	// underscores: DBKIT_CONNECTIONS__LOCAL__URL.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile picks the config file: explicit path first, then
// dbkit.yaml / dbkit.yml in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}
