package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri" yaml:"uri" validate:"required"`
	Database   string `mapstructure:"database" yaml:"database" validate:"required"`
	Collection string `mapstructure:"collection" yaml:"collection" validate:"required"`
}

type ClassifierConfig struct {
	LabelsPath string `mapstructure:"labelsPath" yaml:"labelsPath" validate:"required|unixPath"`
}

type HistoryConfig struct {
	DefaultLimit int `mapstructure:"defaultLimit" yaml:"defaultLimit"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName    string
	Debug      bool
	Path       string
	WebServer  Server           `yaml:"webServer"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Classifier ClassifierConfig `yaml:"classifier"`
	History    HistoryConfig    `yaml:"history"`
	Logger     LoggerConfig     `yaml:"logger"`
	Cache      CacheConfig      `yaml:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}
