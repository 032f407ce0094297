package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"time"

	validator "github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"fontpipe/provider"
	"fontpipe/resolve"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ProviderConfig struct {
		Name    string          `yaml:"name" validate:"required"`
		Disable bool            `yaml:"disable,omitempty"`
		Options provider.Params `yaml:"options,omitempty"`
	}

	FontsConfig struct {
		Families  []resolve.Override `yaml:"families,omitempty" validate:"dive"`
		Defaults  resolve.Defaults   `yaml:"defaults"`
		Providers []ProviderConfig   `yaml:"providers" validate:"dive"`
		// Priority lists providers to try first.
		Priority []string `yaml:"priority,omitempty" validate:"dive,required"`

		ProcessCSSVariables   bool `yaml:"process_css_variables"`
		DisableLocalFallbacks bool `yaml:"disable_local_fallbacks"`
		Minify                bool `yaml:"minify"`
	}

	RedisConfig struct {
		Addrs    []string     `yaml:"addrs,omitempty" validate:"dive,hostname_port"`
		Username string       `yaml:"username,omitempty"`
		Password SecretString `yaml:"password,omitempty"`
		DB       int          `yaml:"db" validate:"gte=0"`
		Prefix   string       `yaml:"prefix"`
	}

	CacheConfig struct {
		Backend string `yaml:"backend" validate:"required,oneof=memory fs sqlite redis"`
		// Path is cache directory of "fs" and "sqlite" backends.
		Path  string        `yaml:"path,omitempty" validate:"required_if=Backend fs,required_if=Backend sqlite"`
		TTL   time.Duration `yaml:"ttl" validate:"gte=0"`
		Redis RedisConfig   `yaml:"redis"`
	}

	AssetsConfig struct {
		// Prefix is url path proxied fonts are served under.
		Prefix string `yaml:"prefix" validate:"required,startswith=/"`
		// Dirs are static directories of the site, local fonts are looked up
		// there.
		Dirs    []string `yaml:"dirs,omitempty" validate:"dive,required"`
		BaseURL string   `yaml:"base_url,omitempty" validate:"omitempty,url"`
		// Proxy remote font files through the prefix.
		Proxy bool `yaml:"proxy"`
	}

	ServerConfig struct {
		Listen string `yaml:"listen" validate:"required,hostname_port"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Fonts     FontsConfig    `yaml:"fonts"`
		Cache     CacheConfig    `yaml:"cache"`
		Assets    AssetsConfig   `yaml:"assets"`
		Server    ServerConfig   `yaml:"server"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// ProviderSpecs returns enabled providers in configured order.
func (conf *FontsConfig) ProviderSpecs() []provider.Spec {
	specs := make([]provider.Spec, 0, len(conf.Providers))
	for _, p := range conf.Providers {
		if p.Disable {
			continue
		}
		specs = append(specs, provider.Spec{Name: p.Name, Params: p.Options})
	}
	return specs
}

// ResolveOptions returns resolver options described by configuration.
func (conf *FontsConfig) ResolveOptions() resolve.Options {
	return resolve.Options{
		Families:              slices.Clone(conf.Families),
		Defaults:              conf.Defaults,
		Priority:              slices.Clone(conf.Priority),
		DisableLocalFallbacks: conf.DisableLocalFallbacks,
	}
}

// checkReferences catches problems tags cannot express: providers named by
// families and priority must be configured, redis backend needs addresses.
func checkReferences(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	known := make([]string, 0, len(cfg.Fonts.Providers))
	for i, p := range cfg.Fonts.Providers {
		if slices.Contains(known, p.Name) {
			sl.ReportError(cfg.Fonts.Providers[i].Name, fmt.Sprintf("Fonts.Providers[%d].Name", i), "Name", "unique", "")
		}
		known = append(known, p.Name)
	}
	for i, name := range cfg.Fonts.Priority {
		if !slices.Contains(known, name) {
			sl.ReportError(cfg.Fonts.Priority[i], fmt.Sprintf("Fonts.Priority[%d]", i), "Priority", "provider", name)
		}
	}
	for i, f := range cfg.Fonts.Families {
		if f.Provider != "" && f.Provider != resolve.ProviderNone && !slices.Contains(known, f.Provider) {
			sl.ReportError(cfg.Fonts.Families[i].Provider, fmt.Sprintf("Fonts.Families[%d].Provider", i), "Provider", "provider", f.Provider)
		}
	}
	if cfg.Cache.Backend == "redis" && len(cfg.Cache.Redis.Addrs) == 0 {
		sl.ReportError(cfg.Cache.Redis.Addrs, "Cache.Redis.Addrs", "Addrs", "required_with_redis", "")
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(checkReferences)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

// Dump returns active configuration as YAML, secrets are masked.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
