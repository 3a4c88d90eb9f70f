package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"fruitvision/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "dlba")
	viper.SetDefault("mongo.collection", "predictions")
	viper.SetDefault("history.defaultLimit", 50)

	viper.BindEnv("mongo.uri", "MONGODB_URI")
	viper.BindEnv("mongo.database", "MONGODB_DB")
	viper.BindEnv("mongo.collection", "MONGODB_COLLECTION")
	viper.BindEnv("logger.level", "FV_LOG_LEVEL")
	viper.BindEnv("cache.enabled", "FV_CACHE_ENABLED")
	viper.BindEnv("cache.size", "FV_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "FruitVision"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
