package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/gosimple/slug"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "BLOCKFS"
	appName      = "blockfs"

	BackendFile = "file"
	BackendBolt = "bolt"
)

type Config struct {
	Image          string `envconfig:"BLOCKFS_IMAGE"           yaml:"image"`
	Backend        string `envconfig:"BLOCKFS_BACKEND"         yaml:"backend"`
	Blocks         int64  `envconfig:"BLOCKFS_BLOCKS"          yaml:"blocks"`
	Label          string `envconfig:"BLOCKFS_LABEL"           yaml:"label"`
	CacheCapacity  int    `envconfig:"BLOCKFS_CACHE_CAPACITY"  yaml:"cacheCapacity"`
	LogLevel       string `envconfig:"BLOCKFS_LOG_LEVEL"       yaml:"logLevel"`
	LogFormat      string `envconfig:"BLOCKFS_LOG_FORMAT"      yaml:"logFormat"`
	SnapshotBucket string `envconfig:"BLOCKFS_SNAPSHOT_BUCKET" yaml:"snapshotBucket"`
	SnapshotPrefix string `envconfig:"BLOCKFS_SNAPSHOT_PREFIX" yaml:"snapshotPrefix"`
	AWSRegion      string `envconfig:"BLOCKFS_AWS_REGION"      yaml:"awsRegion"`
}

// DefaultConfig holds the values used when neither the config file nor the
// environment sets a field.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendFile,
		Blocks:         4096,
		CacheCapacity:  1024,
		LogLevel:       "info",
		LogFormat:      "text",
		SnapshotPrefix: appName,
		AWSRegion:      "us-east-2",
	}
}

func configFile() string {
	if configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE"); configFile != "" {
		return configFile
	}
	return filepath.Join(os.Getenv("HOME"), ".config", appName+".yaml")
}

// LoadConfig layers environment variables over the optional YAML config
// file.
func LoadConfig() (*Config, error) {
	c := DefaultConfig()
	data, err := ioutil.ReadFile(configFile())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return &c, nil
}

// ImagePath returns the configured image path, defaulting to a file named
// after the label in the working directory.
func (c *Config) ImagePath() string {
	if c.Image != "" {
		return c.Image
	}
	name := slug.Make(c.Label)
	if name == "" {
		name = appName
	}
	if c.Backend == BackendBolt {
		return name + ".db"
	}
	return name + ".img"
}

func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.Backend == "" {
			return "backend", "BACKEND"
		}
		if c.LogLevel == "" {
			return "logLevel", "LOG_LEVEL"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}
	if c.Backend != BackendFile && c.Backend != BackendBolt {
		return fmt.Errorf(
			"invalid backend `%s`: wanted `%s` or `%s`",
			c.Backend,
			BackendFile,
			BackendBolt,
		)
	}
	if c.Blocks < 0 {
		return fmt.Errorf("invalid block count `%d`", c.Blocks)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("invalid cache capacity `%d`", c.CacheCapacity)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf(
			"invalid log format `%s`: wanted `text` or `json`",
			c.LogFormat,
		)
	}
	return nil
}

// ValidateSnapshots checks the settings the snapshot commands need on top
// of the basic ones.
func (c *Config) ValidateSnapshots() error {
	if c.SnapshotBucket == "" {
		return fmt.Errorf(
			"missing required configuration: snapshotBucket / %s_SNAPSHOT_BUCKET",
			envVarPrefix,
		)
	}
	if c.AWSRegion == "" {
		return fmt.Errorf(
			"missing required configuration: awsRegion / %s_AWS_REGION",
			envVarPrefix,
		)
	}
	return nil
}

func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
