package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"
	"runtime"

	"gopkg.in/yaml.v2"
)

const (
	configDir       string = "nedump"
	configDirHidden string = ".nedump"
	configFile      string = "config.yml"
)

// DefaultCodepage is the codepage used to decode string resources when no
// codepage can be found in the image's version information.
const DefaultCodepage = 1252

// MaxCodepage is the largest codepage number.
const MaxCodepage = 0xffff

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// DefaultCodepage overrides the fallback codepage used to decode 8-bit
	// string resources.
	DefaultCodepage int `yaml:"default-codepage,omitempty"`

	// Format is the default output format: table, json or yaml.
	Format string `yaml:"format,omitempty"`

	// DefaultActions is the list of actions executed when none is specified
	// on the command line, separated by spaces. Quotes are honored.
	DefaultActions string `yaml:"default-actions,omitempty"`

	// DisasmCount is the number of instructions printed by the disasm
	// action.
	DisasmCount *int `yaml:"disasm-count,omitempty"`

	// Color enables colored section titles when writing to a terminal.
	Color *bool `yaml:"color,omitempty"`
}

// Codepage returns the configured fallback codepage, DefaultCodepage when
// none is set or the configured value is not a 16-bit codepage number.
func (c *Config) Codepage() int {
	if c == nil || c.DefaultCodepage <= 0 || c.DefaultCodepage > MaxCodepage {
		return DefaultCodepage
	}
	return c.DefaultCodepage
}

// Actions returns the configured default actions.
func (c *Config) Actions() []string {
	if c == nil {
		return nil
	}
	return SplitQuotedFields(c.DefaultActions, '\'')
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}

	if _, err := os.Stat(fullConfigFile); err != nil {
		f, err := createDefaultConfig(fullConfigFile)
		if err != nil {
			return &Config{}, fmt.Errorf("error creating default config file: %v", err)
		}
		f.Close()
	}

	return LoadConfigFrom(fullConfigFile)
}

// LoadConfigFrom reads the configuration stored in the YAML file at path.
func LoadConfigFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to open config file: %v", err)
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}
	if err := c.check(); err != nil {
		return &Config{}, fmt.Errorf("invalid config file %s: %v", path, err)
	}

	return &c, nil
}

func (c *Config) check() error {
	if c.DefaultCodepage < 0 || c.DefaultCodepage > MaxCodepage {
		return fmt.Errorf("default-codepage %d out of range", c.DefaultCodepage)
	}
	if c.DisasmCount != nil && *c.DisasmCount < 0 {
		return fmt.Errorf("negative disasm-count %d", *c.DisasmCount)
	}
	return nil
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for nedump.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Codepage used to decode string resources when the image's version
# information does not declare one.
# default-codepage: 1252

# Default output format: table, json or yaml.
# format: table

# Actions executed when none is given on the command line.
# default-actions: "header segments resources imports exports"

# Number of instructions printed by the disasm action.
# disasm-count: 16

# Set to false to disable colored section titles.
# color: true
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	if configPath := os.Getenv("XDG_CONFIG_HOME"); configPath != "" {
		return path.Join(configPath, configDir, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	if runtime.GOOS == "linux" {
		if _, err := os.Stat(path.Join(userHomeDir, configDirHidden)); err != nil {
			return path.Join(userHomeDir, ".config", configDir, file), nil
		}
	}
	return path.Join(userHomeDir, configDirHidden, file), nil
}
