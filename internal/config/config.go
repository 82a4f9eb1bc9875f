package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Groups    []string        `yaml:"groups" mapstructure:"groups"`
	MediaWiki MediaWikiConfig `yaml:"mediawiki" mapstructure:"mediawiki"`
	Wikidata  WikidataConfig  `yaml:"wikidata" mapstructure:"wikidata"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Rate      RateConfig      `yaml:"rate" mapstructure:"rate"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Summaries SummariesConfig `yaml:"summaries" mapstructure:"summaries"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// MediaWikiConfig holds MediaWiki endpoint settings.
type MediaWikiConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RESTBaseURL string `yaml:"rest_base_url" mapstructure:"rest_base_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// WikidataConfig holds the SPARQL endpoint settings.
type WikidataConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// HTTPConfig holds shared HTTP client settings. Wikimedia API guidelines
// require a descriptive User-Agent with a contact address.
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RateConfig configures the process-wide admission gate between outbound calls.
type RateConfig struct {
	MinIntervalMS int `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
}

// MinInterval returns the configured inter-call delay as a duration.
func (r RateConfig) MinInterval() time.Duration {
	return time.Duration(r.MinIntervalMS) * time.Millisecond
}

// RetryConfig configures transient-failure retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// SummariesConfig configures the summary fetch stage.
type SummariesConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// PipelineConfig configures driver-level behavior.
type PipelineConfig struct {
	// FatalAfterConsecutive is the number of consecutive transient-exhaustion
	// failures a stage tolerates before it is treated as a systemic outage.
	FatalAfterConsecutive int `yaml:"fatal_after_consecutive" mapstructure:"fatal_after_consecutive"`
}

// PathsConfig holds on-disk locations for checkpoints and outputs.
type PathsConfig struct {
	CheckpointDB string `yaml:"checkpoint_db" mapstructure:"checkpoint_db"`
	OutputDir    string `yaml:"output_dir" mapstructure:"output_dir"`
	ReportsDir   string `yaml:"reports_dir" mapstructure:"reports_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FILMSET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("groups", []string{
		"Indian films by decade",
		"Indian films by genre",
		"Indian films by language",
		"Indian films by topic",
		"Indian remakes of foreign films",
		"Indian films based on plays",
	})
	v.SetDefault("mediawiki.base_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("mediawiki.rest_base_url", "https://en.wikipedia.org/api/rest_v1")
	v.SetDefault("mediawiki.batch_size", 50)
	v.SetDefault("wikidata.endpoint", "https://query.wikidata.org/sparql")
	v.SetDefault("wikidata.batch_size", 200)
	v.SetDefault("http.user_agent", "filmset-cli/1.0 (https://github.com/cinedata/filmset-cli)")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("rate.min_interval_ms", 200)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("summaries.concurrency", 8)
	v.SetDefault("pipeline.fatal_after_consecutive", 5)
	v.SetDefault("paths.checkpoint_db", "data/checkpoints.db")
	v.SetDefault("paths.output_dir", "data/processed")
	v.SetDefault("paths.reports_dir", "data/reports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
