package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment variable the loader reads.
	EnvPrefix = "HOLOMEM_"
	// EnvNestSeparator separates nesting levels in environment variable
	// names: HOLOMEM_MEMORY__VECTOR__DIMENSION is memory.vector.dimension.
	EnvNestSeparator = "__"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."

	// EnvConfigFile names the config file when no path is given.
	EnvConfigFile = EnvPrefix + "CONFIG"
	// EnvDataDir roots both on-disk stores, see DataDirKeys.
	EnvDataDir = EnvPrefix + "DATA"
)

// envAliases are short names for the settings most often changed per run.
var envAliases = map[string]string{
	EnvPrefix + "STORAGE":   "storage.type",
	EnvPrefix + "LOG_LEVEL": "log.level",
	EnvPrefix + "DIMENSION": "memory.vector.dimension",
	EnvPrefix + "SEED":      "memory.vector.seed",
	EnvPrefix + "THRESHOLD": "memory.crystallization.threshold",
	EnvPrefix + "FAST_MODE": "memory.persistent.fast_mode",
}

// SearchPaths lists the files tried, in order, when neither a path nor
// HOLOMEM_CONFIG names one. The first that exists is used.
func SearchPaths() []string {
	paths := []string{"holomem.yaml", "holomem.yml", "holomem.json"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "holomem", "config.yaml"))
	}
	return append(paths, "/etc/holomem/config.yaml")
}

// DataDirKeys places the badger and file stores under dir.
func DataDirKeys(dir string) map[string]interface{} {
	return map[string]interface{}{
		"storage.badger.path": filepath.Join(dir, "badger"),
		"storage.file.dir":    filepath.Join(dir, "records"),
	}
}

// Loader layers defaults, a config file, the environment and explicit
// overrides into a validated Config. It keeps the merged tree of the last
// Load for inspection.
type Loader struct {
	k    *koanf.Koanf
	path string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{k: koanf.New(Delimiter)}
}

// Load builds a Config. Later layers win:
// defaults, the config file, HOLOMEM_ variables, then overrides.
// An explicit configPath must exist; discovered files are optional.
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	l.k = koanf.New(Delimiter)
	l.path = ""

	if err := l.k.Load(confmap.Provider(flatten(DefaultConfig()), Delimiter), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := l.loadFile(path); err != nil {
			return nil, err
		}
		l.path = path
	}

	if err := l.k.Load(env.Provider(EnvPrefix, Delimiter, envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if dir := os.Getenv(EnvDataDir); dir != "" {
		if err := l.k.Load(confmap.Provider(DataDirKeys(dir), Delimiter), nil); err != nil {
			return nil, fmt.Errorf("apply %s: %w", EnvDataDir, err)
		}
	}
	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the config file used by the last Load, or "" when only
// defaults and the environment applied.
func (l *Loader) Path() string {
	return l.path
}

// resolvePath picks the config file: the argument, then HOLOMEM_CONFIG,
// then the first existing entry of SearchPaths.
func resolvePath(configPath string) (string, error) {
	if configPath == "" {
		configPath = os.Getenv(EnvConfigFile)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", configPath, err)
		}
		return configPath, nil
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func (l *Loader) loadFile(path string) error {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("config file %s: unsupported format %q", path, ext)
	}
	if err := l.k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// envKey maps a variable name to its config key. Aliases map directly;
// HOLOMEM_CONFIG and HOLOMEM_DATA are handled by Load and yield "".
func envKey(name string) string {
	if key, ok := envAliases[name]; ok {
		return key
	}
	if name == EnvConfigFile || name == EnvDataDir {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, EnvNestSeparator, Delimiter)
}

// Get returns a value from the merged tree.
func (l *Loader) Get(key string) interface{} { return l.k.Get(key) }

// GetString returns a string value from the merged tree.
func (l *Loader) GetString(key string) string { return l.k.String(key) }

// GetInt returns an int value from the merged tree.
func (l *Loader) GetInt(key string) int { return l.k.Int(key) }

// GetBool returns a bool value from the merged tree.
func (l *Loader) GetBool(key string) bool { return l.k.Bool(key) }

// Set sets a value in the merged tree. It does not affect a returned Config.
func (l *Loader) Set(key string, value interface{}) error { return l.k.Set(key, value) }

// Print renders the merged tree.
func (l *Loader) Print() string { return l.k.Sprint() }

// flatten turns v into dotted mapstructure keys. Nil slices and maps are
// left out so the decoder keeps the zero value.
func flatten(v interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	flattenValue(reflect.Indirect(reflect.ValueOf(v)), "", out)
	return out
}

func flattenValue(v reflect.Value, prefix string, out map[string]interface{}) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + Delimiter + name
		}

		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Struct:
			flattenValue(fv, key, out)
		case reflect.Ptr:
			if !fv.IsNil() && fv.Elem().Kind() == reflect.Struct {
				flattenValue(fv.Elem(), key, out)
			}
		case reflect.Slice, reflect.Map:
			if !fv.IsNil() {
				out[key] = fv.Interface()
			}
		default:
			out[key] = fv.Interface()
		}
	}
}

// Load is a convenience function to load configuration.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}

// LoadOrDie loads configuration and panics on error.
func LoadOrDie(configPath string, overrides map[string]interface{}) *Config {
	cfg, err := Load(configPath, overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
