package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Model     ModelConfig     `mapstructure:"model"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type DataConfig struct {
	Dir        string `mapstructure:"dir"`
	CSVName    string `mapstructure:"csv_name"` // canonical dataset file name
	StagingDir string `mapstructure:"staging_dir"`
	AutoReload bool   `mapstructure:"auto_reload"`
}

// CSVPath returns the canonical location of the active dataset.
func (d DataConfig) CSVPath() string {
	return d.Dir + "/" + d.CSVName
}

type ModelConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Name      string `mapstructure:"name"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

type AnalyticsConfig struct {
	OutlierStdMultiplier float64            `mapstructure:"outlier_std_multiplier"`
	Segmentation         SegmentationConfig `mapstructure:"segmentation"`
}

// SegmentationConfig holds the expr-lang predicates that place an entity
// total into the high or mid bucket. Anything matching neither is low.
type SegmentationConfig struct {
	Customer SegmentBands `mapstructure:"customer"`
	Merchant SegmentBands `mapstructure:"merchant"`
	Default  SegmentBands `mapstructure:"default"`
}

type SegmentBands struct {
	High string `mapstructure:"high"`
	Mid  string `mapstructure:"mid"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", "*")
	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("data.csv_name", "transactions.csv")
	viper.SetDefault("data.staging_dir", "./uploads")
	viper.SetDefault("data.auto_reload", true)
	viper.SetDefault("model.base_url", "https://api.openai.com/v1")
	viper.SetDefault("model.name", "gpt-4o-mini")
	viper.SetDefault("model.timeout_ms", 15000)
	viper.SetDefault("analytics.outlier_std_multiplier", 1.0)
	viper.SetDefault("analytics.segmentation.customer.high", "total > 800")
	viper.SetDefault("analytics.segmentation.customer.mid", "total > 500")
	viper.SetDefault("analytics.segmentation.merchant.high", "total > 10000")
	viper.SetDefault("analytics.segmentation.merchant.mid", "total > 5000")
	viper.SetDefault("analytics.segmentation.default.high", "total > 800")
	viper.SetDefault("analytics.segmentation.default.mid", "total > 500")

	viper.AutomaticEnv()
	viper.BindEnv("model.api_key", "OPENAI_API_KEY") //nolint:errcheck

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
