package config

// Config is the root configuration schema.
type Config struct {
	Global  GlobalConfig  `mapstructure:"global"`
	Package PackageConfig `mapstructure:"package"`
	Extract ExtractConfig `mapstructure:"extract"`
}

type GlobalConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or console
	LockFile  string `mapstructure:"lock_file"`
}

type PackageConfig struct {
	WorkDir   string `mapstructure:"workdir"`    // where referenced data files live
	OutputDir string `mapstructure:"output_dir"` // where archives are written; empty means workdir
}

type ExtractConfig struct {
	Force bool `mapstructure:"force"` // overwrite an existing MANIFEST.json
}
