package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RUNSTORM_"

// envMapping maps environment variables to setting paths.
var envMapping = map[string]string{
	"RUNSTORM_SHELL":         "shell",
	"RUNSTORM_PYTHON":        "python",
	"RUNSTORM_NODE":          "node",
	"RUNSTORM_JAVAC":         "javac",
	"RUNSTORM_JAVA":          "java",
	"RUNSTORM_PROMPT":        "prompt",
	"RUNSTORM_CLEAR_ON_RUN":  "clear_on_run",
	"RUNSTORM_INPUT_QUEUE":   "input_queue",
	"RUNSTORM_MAX_PROCESSES": "max_processes",
	"RUNSTORM_LOG_LEVEL":     "log.level",
	"RUNSTORM_LOG_FILE":      "log.file",
}

// DefaultPath returns the per-user config file location. The file need
// not exist.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runstorm", "config.toml"), nil
}

// Load builds the configuration from the defaults, the file at path and
// the environment. An empty path skips the file layer. The result is
// validated.
func Load(path string) (*Config, error) {
	layers := make([]map[string]any, 0, 2)
	if path != "" {
		m, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}
	layers = append(layers, Environ(os.Environ()))

	merged := make(map[string]any)
	for _, layer := range layers {
		merged = deepMerge(merged, layer)
	}

	cfg := Default()
	if err := decode(merged, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile parses a TOML or YAML file into a settings map. The format
// is chosen by extension.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var m map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

// Environ extracts overrides from environment entries of the form
// KEY=value. Only the variables in envMapping are read.
func Environ(environ []string) map[string]any {
	m := make(map[string]any)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if path, ok := envMapping[name]; ok {
			setByPath(m, path, value)
		}
	}
	return m
}

// decode applies a settings map onto cfg. Strings from the environment
// are converted to the field types; unknown keys are errors.
func decode(m map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(m); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}

// deepMerge recursively merges src into dst. Maps are merged; other
// values in src replace those in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = srcVal
	}
	return dst
}

// setByPath sets a value in a nested map using a dot-separated path,
// creating intermediate maps as needed.
func setByPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
