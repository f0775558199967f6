package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "TEAMPLAY"

// Load reads configuration from a file, env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved := resolveConfigPath(path)
	if resolved != "" {
		vp.SetConfigFile(resolved)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if envPath := os.Getenv("TEAMPLAY_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"teamplay.yaml",
		"teamplay.yml",
		"teamplay.toml",
		"teamplay.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "teamplay")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	return ""
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "console")
	vp.SetDefault("global.lock_file", "")
	vp.SetDefault("package.workdir", ".")
	vp.SetDefault("package.output_dir", "")
	vp.SetDefault("extract.force", false)
}
