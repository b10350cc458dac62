package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Oracle struct {
		SourceURL       string        `mapstructure:"SOURCE_URL"`
		Asset           string        `mapstructure:"ASSET"`
		TargetMarketCap float64       `mapstructure:"TARGET_MARKET_CAP"`
		CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
		FetchTimeout    time.Duration `mapstructure:"FETCH_TIMEOUT"`
	} `mapstructure:"ORACLE"`
	Settlement struct {
		CampaignKey           string             `mapstructure:"CAMPAIGN_KEY"`
		BaseRewardUSD         float64            `mapstructure:"BASE_REWARD_USD"`
		BonusTiersUSD         map[string]float64 `mapstructure:"BONUS_TIERS_USD"`
		ChannelURL            string             `mapstructure:"CHANNEL_URL"`
		AttemptTimeout        time.Duration      `mapstructure:"ATTEMPT_TIMEOUT"`
		DispatchConcurrency   int                `mapstructure:"DISPATCH_CONCURRENCY"`
		EligibilityExpression string             `mapstructure:"ELIGIBILITY_EXPRESSION"`
		LockTTL               time.Duration      `mapstructure:"LOCK_TTL"`
	} `mapstructure:"SETTLEMENT"`
	Scheduler struct {
		Interval time.Duration `mapstructure:"INTERVAL"`
	} `mapstructure:"SCHEDULER"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config file", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Oracle.CacheTTL <= 0 {
		cfg.Oracle.CacheTTL = time.Minute
	}
	if cfg.Oracle.FetchTimeout <= 0 {
		cfg.Oracle.FetchTimeout = 10 * time.Second
	}
	if cfg.Settlement.CampaignKey == "" {
		cfg.Settlement.CampaignKey = "campaign_payout"
	}
	if cfg.Settlement.AttemptTimeout <= 0 {
		cfg.Settlement.AttemptTimeout = 30 * time.Second
	}
	if cfg.Settlement.DispatchConcurrency <= 0 {
		cfg.Settlement.DispatchConcurrency = 4
	}
	if cfg.Scheduler.Interval <= 0 {
		cfg.Scheduler.Interval = 10 * time.Minute
	}
	if cfg.Settlement.LockTTL <= 0 {
		cfg.Settlement.LockTTL = 2 * cfg.Scheduler.Interval
	}
}
