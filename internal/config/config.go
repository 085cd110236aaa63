package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/pytyper/internal/analyzer"
	"github.com/mcncl/pytyper/internal/formatter"
	"github.com/mcncl/pytyper/internal/generator"
	"github.com/mcncl/pytyper/internal/naming"
	"github.com/mcncl/pytyper/internal/notation"
	"github.com/mcncl/pytyper/internal/parser"
)

// Config represents the complete configuration for pytyper
type Config struct {
	RootName        string           `yaml:"root_name"`
	Notation        string           `yaml:"notation"`
	TypedDictModule string           `yaml:"typed_dict_module"`
	Naming          NamingConfig     `yaml:"naming"`
	Formatting      FormattingConfig `yaml:"formatting"`
	Output          OutputConfig     `yaml:"output"`
	Input           InputConfig      `yaml:"input"`
	Batch           BatchConfig      `yaml:"batch"`
	Logging         LoggingConfig    `yaml:"logging"`
}

// NamingConfig controls how record names become declaration names
type NamingConfig struct {
	Style        string            `yaml:"style"`
	NameMappings map[string]string `yaml:"name_mappings"`
	Rules        []NameRule        `yaml:"rules"`
	Reserved     []string          `yaml:"reserved"`
	ProbeLimit   int               `yaml:"probe_limit"`
}

// NameRule rewrites working names matching a pattern
type NameRule struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`

	// compiled regex (not serialized)
	regex *regexp.Regexp
}

// FormattingConfig controls output layout
type FormattingConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxLineLength int  `yaml:"max_line_length"`
}

// OutputConfig controls the module written around the declarations
type OutputConfig struct {
	FileHeader  string `yaml:"file_header"`
	EmitImports bool   `yaml:"emit_imports"`
}

// InputConfig controls how input documents are read
type InputConfig struct {
	Format string `yaml:"format"`
	Select string `yaml:"select"`
}

// BatchConfig controls the batch runner
type BatchConfig struct {
	Workers   int `yaml:"workers"`
	CacheSize int `yaml:"cache_size"`
}

// LoggingConfig controls diagnostics
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		RootName:        analyzer.DefaultRootName,
		Notation:        notation.Typing,
		TypedDictModule: generator.TypingModule,
		Naming: NamingConfig{
			Style:        string(naming.StyleTitle),
			NameMappings: make(map[string]string),
			ProbeLimit:   naming.DefaultProbeLimit,
		},
		Formatting: FormattingConfig{
			Enabled:       true,
			MaxLineLength: formatter.DefaultMaxLineLength,
		},
		Output: OutputConfig{
			EmitImports: true,
		},
		Input: InputConfig{
			Format: string(parser.FormatAuto),
		},
		Batch: BatchConfig{
			Workers:   4,
			CacheSize: 128,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".pytyper.yml", ".pytyper.yaml", "pytyper.yml", "pytyper.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks enumerated values and compiles name rules.
func (c *Config) Validate() error {
	if _, err := notation.ByName(c.Notation); err != nil {
		return err
	}
	if _, err := naming.ParseStyle(c.Naming.Style); err != nil {
		return err
	}
	if _, err := parser.ParseFormat(c.Input.Format); err != nil {
		return err
	}
	switch c.TypedDictModule {
	case "", generator.TypingModule, generator.TypingExtensionsModule:
	default:
		return fmt.Errorf("typed_dict_module must be %q or %q, got %q",
			generator.TypingModule, generator.TypingExtensionsModule, c.TypedDictModule)
	}
	if c.Naming.ProbeLimit < 0 {
		return fmt.Errorf("naming.probe_limit must not be negative")
	}
	if c.Batch.Workers < 0 || c.Batch.CacheSize < 0 {
		return fmt.Errorf("batch.workers and batch.cache_size must not be negative")
	}
	return c.compilePatterns()
}

// compilePatterns compiles all regex patterns in the config
func (c *Config) compilePatterns() error {
	for i := range c.Naming.Rules {
		rule := &c.Naming.Rules[i]
		regex, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("invalid naming rule pattern '%s': %w", rule.Pattern, err)
		}
		rule.regex = regex
	}
	return nil
}

// Regexp returns the compiled pattern, compiling it on first use. It is
// nil if the pattern does not compile.
func (r *NameRule) Regexp() *regexp.Regexp {
	if r.regex == nil {
		regex, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil
		}
		r.regex = regex
	}
	return r.regex
}

// Normalizer builds the name normalizer described by the naming section.
func (c *Config) Normalizer() naming.Normalizer {
	style, err := naming.ParseStyle(c.Naming.Style)
	if err != nil {
		style = naming.StyleTitle
	}
	n := naming.Normalizer{Style: style, Mappings: c.Naming.NameMappings}
	for i := range c.Naming.Rules {
		rule := &c.Naming.Rules[i]
		if regex := rule.Regexp(); regex != nil {
			n.Rules = append(n.Rules, naming.Rule{Pattern: regex, Replacement: rule.Replace})
		}
	}
	return n
}

// NotationImpl resolves the configured notation.
func (c *Config) NotationImpl() (notation.Notation, error) {
	return notation.ByName(c.Notation)
}

// GeneratorOptions translates the config into generator options.
func (c *Config) GeneratorOptions() ([]generator.Option, error) {
	n, err := c.NotationImpl()
	if err != nil {
		return nil, err
	}
	return []generator.Option{
		generator.WithNotation(n),
		generator.WithNormalizer(c.Normalizer()),
		generator.WithReserved(c.Naming.Reserved...),
		generator.WithProbeLimit(c.Naming.ProbeLimit),
	}, nil
}

// ModuleOptions translates the output section into module writer options.
func (c *Config) ModuleOptions() generator.ModuleOptions {
	return generator.ModuleOptions{
		Header:          c.Output.FileHeader,
		EmitImports:     c.Output.EmitImports,
		TypedDictModule: c.TypedDictModule,
	}
}

// InputFormat returns the configured input format.
func (c *Config) InputFormat() parser.Format {
	f, err := parser.ParseFormat(c.Input.Format)
	if err != nil {
		return parser.FormatAuto
	}
	return f
}

// Overrides holds values given on the command line. Empty strings and nil
// pointers leave the file value alone.
type Overrides struct {
	RootName    string
	Notation    string
	InputFormat string
	Select      string
	Format      *bool
	LogLevel    string
	LogFile     string
}

// MergeConfigs merges CLI overrides into a base config
// Non-empty values from override take precedence over base values
func MergeConfigs(base *Config, override Overrides) *Config {
	merged := *base // Start with a copy of base

	if override.RootName != "" {
		merged.RootName = override.RootName
	}
	if override.Notation != "" {
		merged.Notation = override.Notation
	}
	if override.InputFormat != "" {
		merged.Input.Format = override.InputFormat
	}
	if override.Select != "" {
		merged.Input.Select = override.Select
	}
	if override.Format != nil {
		merged.Formatting.Enabled = *override.Format
	}
	if override.LogLevel != "" {
		merged.Logging.Level = override.LogLevel
	}
	if override.LogFile != "" {
		merged.Logging.File = override.LogFile
	}

	return &merged
}

// LoadConfigWithCLI loads config with CLI argument precedence:
// CLI > config file > defaults.
func LoadConfigWithCLI(configPath string, overrides Overrides) (*Config, error) {
	cfg := NewConfig()

	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	cfg = MergeConfigs(cfg, overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
