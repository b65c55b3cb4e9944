// Package config loads vcompress settings from flags, environment and
// TOML, reads batch manifests, and watches the config file for changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/vcompress/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "VCOMPRESS_"

var durationType = reflect.TypeOf(time.Duration(0))

// LoadConfig fills the struct opts points to. Fields tagged toml:"a.b" read
// key b of table [a] in the file named by the Config field; fields tagged
// env:"X" read VCOMPRESS_X. Flags explicitly set on cmd win over env, env
// wins over the file, and the file wins over the defaults already in opts.
// A missing file is not an error; a malformed one is.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	file, err := readTable(configPath(v))
	if err != nil {
		return err
	}
	changed := changedFlags(cmd)

	for i := range t.NumField() {
		sf := t.Field(i)
		if changed[flagName(sf.Name)] {
			continue
		}
		field := v.Field(i)

		if key := sf.Tag.Get("toml"); key != "" {
			if value := lookup(file, key); value != nil {
				assign(field, value)
			}
		}
		if key := sf.Tag.Get("env"); key != "" {
			if value := os.Getenv(EnvPrefix + key); value != "" {
				assign(field, value)
			}
		}
	}
	return nil
}

func configPath(v reflect.Value) string {
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

// readTable parses the config file, returning nil when there is none.
func readTable(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var table map[string]any
	if err := toml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}
	return table, nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

// flagName is the kebab-case flag humacli derives from a field name:
// "ThumbnailIntervalMs" -> "thumbnail-interval-ms".
func flagName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookup resolves a dotted key through nested tables.
func lookup(table map[string]any, key string) any {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]any)
		if !ok {
			return nil
		}
		table = next
	}
	return table[parts[len(parts)-1]]
}

// assign stores value in field. TOML values arrive typed; env values are
// strings parsed by the field's kind. Integers assigned to a
// time.Duration are milliseconds. Values of the wrong type are ignored.
func assign(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	if s, ok := value.(string); ok {
		assignString(field, s)
		return
	}

	switch v := value.(type) {
	case int64:
		switch {
		case field.Type() == durationType:
			field.SetInt(v * int64(time.Millisecond))
		case field.CanInt():
			field.SetInt(v)
		case field.CanFloat():
			field.SetFloat(float64(v))
		}
	case float64:
		if field.CanFloat() {
			field.SetFloat(v)
		}
	case bool:
		if field.Kind() == reflect.Bool {
			field.SetBool(v)
		}
	case []any:
		if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
			items := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
			field.Set(reflect.ValueOf(items))
		}
	}
}

func assignString(field reflect.Value, s string) {
	if field.Type() == durationType {
		if d, err := time.ParseDuration(s); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		if b, err := strconv.ParseBool(s); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(s, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
}

// ReadLoggingConfig reads the [logging] table of a config file.
// Per-module levels live under [logging.modules]. Unset values fall back
// to info level and text format.
func ReadLoggingConfig(configPath string) (logging.Config, error) {
	var raw struct {
		Logging logging.Config `toml:"logging"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return defaultLogging(), err
	}
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return defaultLogging(), fmt.Errorf("failed to parse logging config: %w", err)
	}

	cfg := raw.Logging
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Modules == nil {
		cfg.Modules = make(map[string]string)
	}
	return cfg, nil
}

// LoadLoggingConfig is ReadLoggingConfig for startup: a missing file is
// not an error, and a malformed one yields the defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	if configPath == "" {
		return defaultLogging()
	}
	cfg, err := ReadLoggingConfig(configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return defaultLogging()
	}
	return cfg
}

func defaultLogging() logging.Config {
	return logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
}
