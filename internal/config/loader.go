package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const rootKey = "packetscope"

// Load reads the config file at path. A missing path yields defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PACKETSCOPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if path != "" {
		dir := filepath.Dir(path)
		filename := filepath.Base(path)
		ext := filepath.Ext(filename)

		v.SetConfigName(strings.TrimSuffix(filename, ext))
		v.SetConfigType(strings.TrimPrefix(ext, "."))
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// Unmarshal the whole tree so file values merge with defaults.
	var root struct {
		Packetscope Config `mapstructure:"packetscope"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config := root.Packetscope
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(rootKey+".source.name", "sim")
	v.SetDefault(rootKey+".stats.window", "1s")
	v.SetDefault(rootKey+".stats.top_conversations", 5)
	v.SetDefault(rootKey+".analyzer.workers", 1)
	v.SetDefault(rootKey+".output.format", "json")
	v.SetDefault(rootKey+".output.max_records", 20)
	v.SetDefault(rootKey+".log.level", "info")
}

// Validate rejects values the engine cannot act on. Conversion methods do
// the detailed parsing; this catches the cross-field problems early.
func (c *Config) Validate() error {
	if c.Source.Name == "" {
		return fmt.Errorf("source.name is required")
	}
	if _, err := c.Filter.Criteria(); err != nil {
		return err
	}
	if _, err := c.Stats.StatsConfig(); err != nil {
		return err
	}
	if _, err := c.Detect.DetectConfig(); err != nil {
		return err
	}
	if c.Analyzer.Workers < 0 {
		return fmt.Errorf("analyzer.workers must not be negative")
	}
	if f := c.Output.Format; f != "" && f != "json" && f != "yaml" {
		return fmt.Errorf("unsupported output format %q", f)
	}
	return nil
}
