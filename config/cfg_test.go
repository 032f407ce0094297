package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"fontpipe/resolve"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fontpipe.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func providerNames(cfg *Config) []string {
	var names []string
	for _, s := range cfg.Fonts.ProviderSpecs() {
		names = append(names, s.Name)
	}
	return names
}

func TestLoadConfiguration_Defaults(t *testing.T) {
	cacheHome := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cacheHome)

	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Cache.Backend != "fs" || cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if !strings.HasPrefix(cfg.Cache.Path, cacheHome) {
		t.Errorf("cache path '%s' is not under XDG_CACHE_HOME '%s'", cfg.Cache.Path, cacheHome)
	}
	if cfg.Assets.Prefix != "/_fonts" || !cfg.Assets.Proxy {
		t.Errorf("unexpected assets defaults: %+v", cfg.Assets)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" || cfg.Logging.FileLogger.Level != "none" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}

	want := []string{"google", "googleicons", "bunny", "fontshare", "fontsource", "local"}
	if diff := cmp.Diff(want, providerNames(cfg)); diff != "" {
		t.Errorf("enabled providers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(resolve.DefaultDefaults(), cfg.Fonts.Defaults, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("font defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfiguration_File(t *testing.T) {
	path := writeConfig(t, `
version: 1
fonts:
  families:
    - name: Inter
      provider: bunny
      weights: ["400", "700"]
      fallbacks: ["Arial"]
    - name: Brand
      src: ["/fonts/brand.woff2"]
      display: optional
      global: true
  priority: [fontsource]
  process_css_variables: true
  providers:
    - name: bunny
    - name: fontsource
    - name: adobe
      disable: true
cache:
  backend: memory
`)
	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if diff := cmp.Diff([]string{"bunny", "fontsource"}, providerNames(cfg)); diff != "" {
		t.Errorf("enabled providers mismatch (-want +got):\n%s", diff)
	}

	opts := cfg.Fonts.ResolveOptions()
	wantFamilies := []resolve.Override{
		{Name: "Inter", Provider: "bunny", Weights: []string{"400", "700"}, Fallbacks: []string{"Arial"}},
		{Name: "Brand", Src: []string{"/fonts/brand.woff2"}, Display: "optional", Global: true},
	}
	if diff := cmp.Diff(wantFamilies, opts.Families); diff != "" {
		t.Errorf("families mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"fontsource"}, opts.Priority); diff != "" {
		t.Errorf("priority mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Fonts.ProcessCSSVariables {
		t.Error("process_css_variables was not applied")
	}

	// untouched sections keep template values
	if cfg.Cache.Backend != "memory" || cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("unexpected cache: %+v", cfg.Cache)
	}
	if diff := cmp.Diff([]string{"400"}, opts.Defaults.Weights); diff != "" {
		t.Errorf("default weights mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfiguration_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "version: 1\nfonts:\n  unknown: true\n",
			wantErr: "field unknown not found",
		},
		{
			name:    "wrong version",
			content: "version: 2\n",
			wantErr: "Version",
		},
		{
			name:    "unsupported backend",
			content: "version: 1\ncache:\n  backend: disk\n",
			wantErr: "Backend",
		},
		{
			name:    "family without name",
			content: "version: 1\nfonts:\n  families:\n    - provider: google\n",
			wantErr: "Name",
		},
		{
			name:    "bad font display",
			content: "version: 1\nfonts:\n  families:\n    - name: Inter\n      display: later\n",
			wantErr: "Display",
		},
		{
			name:    "priority names unknown provider",
			content: "version: 1\nfonts:\n  priority: [typekit]\n",
			wantErr: "Priority",
		},
		{
			name:    "family names unknown provider",
			content: "version: 1\nfonts:\n  families:\n    - name: Inter\n      provider: typekit\n",
			wantErr: "Provider",
		},
		{
			name:    "duplicate provider",
			content: "version: 1\nfonts:\n  providers:\n    - name: google\n    - name: google\n",
			wantErr: "unique",
		},
		{
			name:    "redis without addresses",
			content: "version: 1\ncache:\n  backend: redis\n",
			wantErr: "Addrs",
		},
		{
			name:    "relative assets prefix",
			content: "version: 1\nassets:\n  prefix: fonts\n",
			wantErr: "Prefix",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfiguration(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error '%v' does not mention '%s'", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfiguration_MissingFile(t *testing.T) {
	if _, err := LoadConfiguration(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProviderSpecs(t *testing.T) {
	conf := FontsConfig{Providers: []ProviderConfig{
		{Name: "local", Options: map[string]any{"dirs": []any{"static"}}},
		{Name: "google", Disable: true},
		{Name: "adobe", Options: map[string]any{"id": "abc"}},
	}}
	specs := conf.ProviderSpecs()
	if len(specs) != 2 || specs[0].Name != "local" || specs[1].Name != "adobe" {
		t.Fatalf("unexpected specs: %+v", specs)
	}
	if diff := cmp.Diff([]string{"static"}, specs[0].Params.Strings("dirs")); diff != "" {
		t.Errorf("local dirs mismatch (-want +got):\n%s", diff)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration(writeConfig(t, `
version: 1
cache:
  backend: redis
  redis:
    addrs: ["localhost:6379"]
    password: hunter2
`))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Cache.Redis.Password.Reveal() != "hunter2" {
		t.Fatal("password was not loaded")
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if bytes.Contains(data, []byte("hunter2")) {
		t.Error("dumped configuration contains password")
	}
	if !bytes.Contains(data, []byte(SecretStringValue)) {
		t.Error("dumped configuration does not mark password")
	}
	if !bytes.Contains(data, []byte("localhost:6379")) {
		t.Error("dumped configuration lost redis address")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if bytes.Contains(data, []byte("{{")) {
		t.Error("template was not expanded")
	}
	if _, err := unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("default configuration does not load: %v", err)
	}
}
