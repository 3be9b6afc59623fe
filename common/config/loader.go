package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/rainbow-me/platform-shutdown/common/env"
	"github.com/rainbow-me/platform-shutdown/common/logger"
)

const (
	fileFormat     = ".yaml"        // File format of the config files
	relativePath   = "./cmd/config" // Default relative path for config files (base path)
	binaryPath     = "./config"     // Path for binary build config (base path)
	binaryDir      = "target"       // Directory name for the binary target
	binaryInDocker = "app"          // Directory name for Docker deployment
	envVarPrefix   = "env://"       // Prefix for environment variables
)

// YamlReadConfig holds the configuration paths (relative and absolute).
type YamlReadConfig struct {
	RelativePath string // Path relative to the current directory
	AbsolutePath string // Absolute path if provided
	DynamicDir   string // Optional dynamic directory
}

// ReadConfigOption is a function signature used to set configuration options.
type ReadConfigOption func(*YamlReadConfig)

// WithRelativePath sets a relative path for the config file.
func WithRelativePath(path string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.RelativePath = path
	}
}

// WithAbsolutePath sets an absolute path for the config file.
func WithAbsolutePath(path string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.AbsolutePath = path
	}
}

// WithDynamicDir appends a subdirectory to whichever base path is used.
func WithDynamicDir(dynamicDir string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.DynamicDir = dynamicDir
	}
}

// configDir resolves the directory holding <env>.yaml.
func (c *YamlReadConfig) configDir(currentDir string, log *logger.Logger) string {
	if strings.Contains(currentDir, binaryDir) || strings.Contains(currentDir, binaryInDocker) {
		log.Info("Binary directory", logger.String("directory", binaryDir))
		c.RelativePath = binaryPath
	}

	if c.DynamicDir != "" {
		c.RelativePath = fmt.Sprintf("%s/%s", c.RelativePath, c.DynamicDir)
		if c.AbsolutePath != "" {
			c.AbsolutePath = fmt.Sprintf("%s/%s", c.AbsolutePath, c.DynamicDir)
		}
		log.Info("Updated relative path", logger.String("path", c.RelativePath))
	}

	if c.AbsolutePath != "" {
		log.Info("Using absolute path", logger.String("path", c.AbsolutePath))
		return c.AbsolutePath
	}
	log.Info("Using relative path", logger.String("path", c.RelativePath))
	return c.RelativePath
}

// LoadConfig reads <dir>/<ENVIRONMENT>.yaml into conf.
//
// Environment variables override file values (a key such as shutdown.drainGrace
// maps to SHUTDOWN_DRAINGRACE) and string values of the form env://NAME are
// replaced with the value of $NAME. Durations decode from Go duration strings
// or from millisecond numbers, see ParseGrace.
func LoadConfig(conf interface{}, log *logger.Logger, options ...ReadConfigOption) error {
	config := &YamlReadConfig{RelativePath: relativePath}
	for _, option := range options {
		option(config)
	}

	currentDir, err := os.Getwd()
	if err != nil {
		log.Error("Error getting current working directory", logger.Error(err))
		return errors.Wrap(err, "failed to get current working directory")
	}
	log.Info("Current working directory", logger.String("directory", currentDir))

	pathToConfigDir := config.configDir(currentDir, log)

	currentEnv, err := env.GetApplicationEnv()
	if err != nil {
		return errors.Wrap(err, "invalid environment")
	}

	filePath := fmt.Sprintf("%s/%s%s", pathToConfigDir, currentEnv, fileFormat)
	log.Info("Reading config file from path", logger.String("path", filePath))

	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "failed to read configuration file")
	}

	for _, key := range v.AllKeys() {
		resolveEnvPlaceholder(v, key, log)
	}

	err = v.Unmarshal(conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		graceDecodeHook(),
		eventsDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal configuration")
	}

	return nil
}

func resolveEnvPlaceholder(v *viper.Viper, key string, log *logger.Logger) {
	str, ok := v.Get(key).(string)
	if !ok || !strings.HasPrefix(str, envVarPrefix) {
		return
	}

	envVar := str[len(envVarPrefix):]
	if envValue, exists := os.LookupEnv(envVar); exists {
		v.Set(key, envValue)
		log.Info("set environment variable", logger.String("variableName", envVar))
		return
	}
	v.Set(key, "")
	log.Warn("environment variable not found", logger.String("variableName", envVar))
}
