package configloader

import (
	"bytes"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"

	"github.com/hyp3rd/logcore"
)

// FromEnv builds a configuration using environment variables with the
// provided prefix, e.g. LOGCORE_MEMORY_GROW_FACTOR for prefix "logcore".
func FromEnv(prefix string) (logcore.Config, error) {
	viperInstance := viper.New()

	err := configureViperEnv(viperInstance, prefix)
	if err != nil {
		return logcore.DefaultConfig(), err
	}

	return fromViper(viperInstance)
}

// FromYAML parses the provided YAML document into a configuration.
func FromYAML(data []byte) (logcore.Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigType("yaml")

	err := viperInstance.ReadConfig(bytes.NewReader(data))
	if err != nil {
		return logcore.DefaultConfig(), ewrap.Wrap(err, "failed to read config from YAML")
	}

	return fromViper(viperInstance)
}

// FromFile loads configuration from the given file path.
func FromFile(path string) (logcore.Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(path)

	err := viperInstance.ReadInConfig()
	if err != nil {
		return logcore.DefaultConfig(), ewrap.Wrapf(err, "failed to read config file %s", path)
	}

	return fromViper(viperInstance)
}

func configureViperEnv(viperInstance *viper.Viper, prefix string) error {
	replacer := strings.NewReplacer(".", "_")
	viperInstance.SetEnvKeyReplacer(replacer)
	viperInstance.AutomaticEnv()

	if prefix != "" {
		viperInstance.SetEnvPrefix(strings.ToLower(strings.TrimSuffix(prefix, "_")))
	}

	errorGroup := ewrap.NewErrorGroup()

	for _, key := range allKeys() {
		err := viperInstance.BindEnv(key)
		if err != nil {
			errorGroup.Add(err)
		}
	}

	if errorGroup.HasErrors() {
		return errorGroup
	}

	return nil
}

func fromViper(viperInstance *viper.Viper) (logcore.Config, error) {
	var raw rawConfig

	err := viperInstance.Unmarshal(&raw)
	if err != nil {
		return logcore.DefaultConfig(), ewrap.Wrap(err, "failed to decode configuration")
	}

	return applyRaw(raw), nil
}
