package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env               string           `mapstructure:"env"`
	LogLevel          string           `mapstructure:"log_level"`
	LogType           string           `mapstructure:"log_type"`
	LogFile           string           `mapstructure:"log_file"`
	ServiceName       string           `mapstructure:"service_name"`
	Version           string           `mapstructure:"version"`
	ScraperSettings   *ScraperConfig   `mapstructure:"scraper"`
	SelectorSettings  *SelectorConfig  `mapstructure:"selectors"`
	CacheSettings     *CacheConfig     `mapstructure:"cache"`
	OutputSettings    *OutputConfig    `mapstructure:"output"`
	DbSettings        *DatabaseConfig  `mapstructure:"database"`
	KafkaSettings     *KafkaConfig     `mapstructure:"kafka"`
	S3Settings        *S3Config        `mapstructure:"s3"`
	DashboardSettings *DashboardConfig `mapstructure:"dashboard"`
}

type ScraperConfig struct {
	ScrapeMechanism   int           `mapstructure:"scrape_mechanism"`
	BaseURL           string        `mapstructure:"base_url"`
	Keywords          []string      `mapstructure:"keywords"`
	MaxResults        int           `mapstructure:"max_results"`
	PageTimeout       time.Duration `mapstructure:"page_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout"`
	LocatorTimeout    time.Duration `mapstructure:"locator_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	SearchSettleDelay time.Duration `mapstructure:"search_settle_delay"`
	KeywordDelay      time.Duration `mapstructure:"keyword_delay"`
	ItemDelay         time.Duration `mapstructure:"item_delay"`
	TypingDelay       time.Duration `mapstructure:"typing_delay"`
	UserAgent         string        `mapstructure:"user_agent"`
	Headless          bool          `mapstructure:"headless"`
}

// SelectorConfig overrides the built-in selector lists. Entries prefixed with "xpath:" are XPath
// expressions, everything else is CSS. Empty lists keep the defaults.
type SelectorConfig struct {
	SearchInput []string `mapstructure:"search_input"`
	ResultCard  []string `mapstructure:"result_card"`
	ProgramType []string `mapstructure:"program_type"`
	TuitionCost []string `mapstructure:"tuition_cost"`
}

type CacheConfig struct {
	Type    string        `mapstructure:"type"` // none, local or memcached
	Servers string        `mapstructure:"servers"`
	Ttl     time.Duration `mapstructure:"ttl"`
}

type OutputConfig struct {
	Dir        string   `mapstructure:"dir"`
	FilePrefix string   `mapstructure:"file_prefix"`
	Formats    []string `mapstructure:"formats"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"` // mysql or sqlite
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
}

type KafkaConfig struct {
	Producer *ProducerConfig `mapstructure:"producer"`
}

type ProducerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Addr           string        `mapstructure:"addr"`
	WriteTopicName string        `mapstructure:"write_topic_name"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequiredAcks   int           `mapstructure:"required_acks"`
	Async          bool          `mapstructure:"async"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	AwsAccessKey    string `mapstructure:"aws_access_key"`
	AwsSecretKey    string `mapstructure:"aws_secret_key"`
	AwsBaseEndpoint string `mapstructure:"aws_base_endpoint"`
	Region          string `mapstructure:"region"`
	BucketName      string `mapstructure:"bucket_name"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

type DashboardConfig struct {
	Port        string        `mapstructure:"port"`
	DataFile    string        `mapstructure:"data_file"`
	TopN        int           `mapstructure:"top_n"`
	PreviewRows int           `mapstructure:"preview_rows"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_type", "text")
	v.SetDefault("log_file", "")
	v.SetDefault("service_name", "program-scraper")
	v.SetDefault("version", "dev")

	v.SetDefault("scraper.scrape_mechanism", 1)
	v.SetDefault("scraper.base_url", "https://course.mytcas.com")
	v.SetDefault("scraper.keywords", []string{})
	v.SetDefault("scraper.max_results", 0)
	v.SetDefault("scraper.page_timeout", 30*time.Second)
	v.SetDefault("scraper.selector_timeout", 10*time.Second)
	v.SetDefault("scraper.locator_timeout", 2*time.Second)
	v.SetDefault("scraper.poll_interval", 250*time.Millisecond)
	v.SetDefault("scraper.search_settle_delay", 3*time.Second)
	v.SetDefault("scraper.keyword_delay", 2*time.Second)
	v.SetDefault("scraper.item_delay", 1*time.Second)
	v.SetDefault("scraper.typing_delay", time.Duration(0))
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.headless", true)

	v.SetDefault("selectors.search_input", []string{})
	v.SetDefault("selectors.result_card", []string{})
	v.SetDefault("selectors.program_type", []string{})
	v.SetDefault("selectors.tuition_cost", []string{})

	v.SetDefault("cache.type", "none")
	v.SetDefault("cache.servers", "localhost:11211")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.file_prefix", "tcas_data")
	v.SetDefault("output.formats", []string{"csv", "xlsx"})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "program-scraper.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "programs")
	v.SetDefault("database.conn_max_lifetime", 3*time.Minute)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("kafka.producer.enabled", false)
	v.SetDefault("kafka.producer.addr", "localhost:9092")
	v.SetDefault("kafka.producer.write_topic_name", "program-records")
	v.SetDefault("kafka.producer.max_attempts", 3)
	v.SetDefault("kafka.producer.batch_size", 50)
	v.SetDefault("kafka.producer.batch_timeout", 1*time.Second)
	v.SetDefault("kafka.producer.read_timeout", 10*time.Second)
	v.SetDefault("kafka.producer.write_timeout", 10*time.Second)
	v.SetDefault("kafka.producer.required_acks", 1)
	v.SetDefault("kafka.producer.async", false)

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.aws_access_key", "")
	v.SetDefault("s3.aws_secret_key", "")
	v.SetDefault("s3.aws_base_endpoint", "")
	v.SetDefault("s3.region", "ap-southeast-1")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.key_prefix", "program-scraper")

	v.SetDefault("dashboard.port", "8050")
	v.SetDefault("dashboard.data_file", "")
	v.SetDefault("dashboard.top_n", 10)
	v.SetDefault("dashboard.preview_rows", 10)
	v.SetDefault("dashboard.read_timeout", 10*time.Second)
}

// Load reads the yaml config at path. With an empty path ./config.yaml is used when present;
// defaults and environment variables apply either way.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	setDefaults(v)
	if path == "" {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	} else {
		v.SetConfigFile(path)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		slog.Error("can't initialize config file.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return cfg
}
