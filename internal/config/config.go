package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName names the config directory and the environment prefix
const AppName = "listinsight"

// Config holds all application configuration
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Data    DataConfig    `mapstructure:"data"`
	UI      UIConfig      `mapstructure:"ui"`
	Log     LogConfig     `mapstructure:"log"`
}

type GeneralConfig struct {
	ProjectRoot  string `mapstructure:"project_root"`
	ProjectName  string `mapstructure:"project_name"`
	SettingsFile string `mapstructure:"settings_file"`
}

type DataConfig struct {
	MaxCellDisplayLength int    `mapstructure:"max_cell_display_length"`
	MaxDisplayRows       int    `mapstructure:"max_display_rows"`
	FallbackEncoding     string `mapstructure:"fallback_encoding"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"root":      "general.project_root",
	"project":   "general.project_name",
	"max-cell":  "data.max_cell_display_length",
	"max-rows":  "data.max_display_rows",
	"log-level": "log.level",
	"dev":       "log.development",
	"encoding":  "data.fallback_encoding",
}

// GetDefaults returns a Config with all default values
func GetDefaults() *Config {
	return &Config{
		General: GeneralConfig{
			ProjectRoot: ".",
			ProjectName: "default",
		},
		Data: DataConfig{
			MaxCellDisplayLength: 40,
			MaxDisplayRows:       50,
			FallbackEncoding:     "latin1",
		},
		UI: UIConfig{
			Theme: "default",
		},
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := GetDefaults()
	v.SetDefault("general.project_root", d.General.ProjectRoot)
	v.SetDefault("general.project_name", d.General.ProjectName)
	v.SetDefault("general.settings_file", d.General.SettingsFile)
	v.SetDefault("data.max_cell_display_length", d.Data.MaxCellDisplayLength)
	v.SetDefault("data.max_display_rows", d.Data.MaxDisplayRows)
	v.SetDefault("data.fallback_encoding", d.Data.FallbackEncoding)
	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Load loads configuration. An explicit configFile must exist; otherwise
// config.yaml is searched in the user config directory, "." and "./config",
// and its absence is not an error. Flags that were set on the command line
// override file values.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if configDir, err := GetConfigPath(); err == nil {
			v.AddConfigPath(configDir)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	// It's okay if the file doesn't exist, we have defaults
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// GetConfigPath returns the user config directory path
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// SettingsPath returns the settings file to use, defaulting to settings.yaml
// in the user config directory
func (c *Config) SettingsPath() (string, error) {
	if c.General.SettingsFile != "" {
		return c.General.SettingsFile, nil
	}
	dir, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}
