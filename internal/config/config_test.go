package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// serverOptions mirrors the shape of the root command's options.
type serverOptions struct {
	Config string

	Port           string        `toml:"server.port" env:"SERVER_PORT"`
	AuthUsername   string        `toml:"auth.username" env:"AUTH_USERNAME"`
	MetricsEnabled bool          `toml:"features.metrics" env:"FEATURES_METRICS"`
	KillGraceMs    int           `toml:"batch.kill_grace_ms" env:"BATCH_KILL_GRACE_MS"`
	Extensions     []string      `toml:"batch.extensions" env:"BATCH_EXTENSIONS"`
	SpeedTarget    float64       `toml:"batch.speed_target" env:"BATCH_SPEED_TARGET"`
	Interval       time.Duration `toml:"thumbnails.interval" env:"THUMBNAILS_INTERVAL"`
	Untagged       string
}

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

const sampleConfig = `
[server]
port = ":9000"

[auth]
username = "admin"

[features]
metrics = false

[batch]
kill_grace_ms = 2500
extensions = ["mov", "mp4"]
speed_target = 1.5

[thumbnails]
interval = "30s"
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &serverOptions{Config: writeTOML(t, sampleConfig), MetricsEnabled: true, Untagged: "keep"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := serverOptions{
		Config:         opts.Config,
		Port:           ":9000",
		AuthUsername:   "admin",
		MetricsEnabled: false,
		KillGraceMs:    2500,
		Extensions:     []string{"mov", "mp4"},
		SpeedTarget:    1.5,
		Interval:       30 * time.Second,
		Untagged:       "keep",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("VCOMPRESS_SERVER_PORT", ":7000")
	t.Setenv("VCOMPRESS_FEATURES_METRICS", "true")
	t.Setenv("VCOMPRESS_BATCH_EXTENSIONS", " mkv , webm ")
	t.Setenv("VCOMPRESS_BATCH_SPEED_TARGET", "2")
	t.Setenv("VCOMPRESS_THUMBNAILS_INTERVAL", "250ms")

	opts := &serverOptions{Config: writeTOML(t, sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if opts.Port != ":7000" || !opts.MetricsEnabled {
		t.Errorf("env not applied: port=%q metrics=%v", opts.Port, opts.MetricsEnabled)
	}
	if !reflect.DeepEqual(opts.Extensions, []string{"mkv", "webm"}) {
		t.Errorf("Extensions = %v, want [mkv webm]", opts.Extensions)
	}
	if opts.SpeedTarget != 2 || opts.Interval != 250*time.Millisecond {
		t.Errorf("SpeedTarget=%v Interval=%v", opts.SpeedTarget, opts.Interval)
	}
	if opts.KillGraceMs != 2500 {
		t.Errorf("KillGraceMs = %d, want file value 2500", opts.KillGraceMs)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("VCOMPRESS_SERVER_PORT", ":7000")

	opts := &serverOptions{Config: writeTOML(t, sampleConfig)}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Port, "port", ":8090", "")
	cmd.Flags().IntVar(&opts.KillGraceMs, "kill-grace-ms", 5000, "")
	if err := cmd.Flags().Parse([]string{"--port", ":1234", "--kill-grace-ms", "100"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Port != ":1234" || opts.KillGraceMs != 100 {
		t.Errorf("flags overwritten: port=%q kill=%d", opts.Port, opts.KillGraceMs)
	}
	if opts.AuthUsername != "admin" {
		t.Errorf("AuthUsername = %q, want admin", opts.AuthUsername)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &serverOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: ":8090"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Port != ":8090" {
		t.Errorf("Port = %q, want default", opts.Port)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &serverOptions{Config: writeTOML(t, "[server\nport = 1\n")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig() should fail for invalid TOML")
	}
}

func TestIntegerDurationIsMilliseconds(t *testing.T) {
	opts := &serverOptions{Config: writeTOML(t, "[thumbnails]\ninterval = 1500\n")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Interval != 1500*time.Millisecond {
		t.Errorf("Interval = %v, want 1.5s", opts.Interval)
	}
}

func TestAssignIgnoresMismatchedTypes(t *testing.T) {
	opts := serverOptions{Port: ":8090", KillGraceMs: 5000, MetricsEnabled: true}
	v := reflect.ValueOf(&opts).Elem()

	assign(v.FieldByName("Port"), int64(9000))
	assign(v.FieldByName("KillGraceMs"), "not a number")
	assign(v.FieldByName("MetricsEnabled"), "maybe")

	if opts.Port != ":8090" || opts.KillGraceMs != 5000 || !opts.MetricsEnabled {
		t.Errorf("mismatched values were applied: %+v", opts)
	}
}

func TestLookup(t *testing.T) {
	table := map[string]any{
		"server":  map[string]any{"port": ":9000"},
		"logging": map[string]any{"modules": map[string]any{"batch": "debug"}},
		"root":    "value",
	}

	tests := []struct {
		key  string
		want any
	}{
		{"root", "value"},
		{"server.port", ":9000"},
		{"logging.modules.batch", "debug"},
		{"server.missing", nil},
		{"root.child", nil},
		{"absent", nil},
	}
	for _, tt := range tests {
		if got := lookup(table, tt.key); got != tt.want {
			t.Errorf("lookup(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
	if got := lookup(nil, "server.port"); got != nil {
		t.Errorf("lookup(nil) = %v, want nil", got)
	}
}

func TestFlagName(t *testing.T) {
	tests := map[string]string{
		"Port":                "port",
		"LoggingLevel":        "logging-level",
		"ThumbnailIntervalMs": "thumbnail-interval-ms",
		"FfmpegPath":          "ffmpeg-path",
	}
	for field, want := range tests {
		if got := flagName(field); got != want {
			t.Errorf("flagName(%q) = %q, want %q", field, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTOML(t, `
[logging]
level = "warn"
format = "json"

[logging.modules]
batch = "debug"
ffmpeg = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("level=%q format=%q", cfg.Level, cfg.Format)
	}
	want := map[string]string{"batch": "debug", "ffmpeg": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"no path", ""},
		{"missing file", filepath.Join(t.TempDir(), "absent.toml")},
		{"invalid toml", writeTOML(t, "[logging\n")},
		{"no logging table", writeTOML(t, "port = \"8090\"\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadLoggingConfig(tt.path)
			if cfg.Level != "info" || cfg.Format != "text" || cfg.Modules == nil {
				t.Errorf("expected defaults, got %+v", cfg)
			}
		})
	}
}

func TestReadLoggingConfigReportsErrors(t *testing.T) {
	if _, err := ReadLoggingConfig(writeTOML(t, "[logging\n")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := ReadLoggingConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected read error")
	}
}
