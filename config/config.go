package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Removal  RemovalConfig  `mapstructure:"removal"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Output   OutputConfig   `mapstructure:"output"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Log      LogConfig      `mapstructure:"log"`
}

type EngineConfig struct {
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	InputName   string        `mapstructure:"input_name"`
	OutputName  string        `mapstructure:"output_name"`
	Timeout     time.Duration `mapstructure:"timeout"`
	InputWidth  int           `mapstructure:"input_width"`
	InputHeight int           `mapstructure:"input_height"`
}

type RemovalConfig struct {
	Threshold int  `mapstructure:"threshold"`
	Binary    bool `mapstructure:"binary"`
	Sticker   bool `mapstructure:"sticker"`
	// Trim 裁掉主体外的透明区域
	Trim bool `mapstructure:"trim"`
	// MaxSize 输入最长边上限，0 不限制
	MaxSize int `mapstructure:"max_size"`
}

type ServerConfig struct {
	Port          string `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type OutputConfig struct {
	Dir         string        `mapstructure:"dir"`
	Quality     int           `mapstructure:"quality"`
	Retention   time.Duration `mapstructure:"retention"`
	CleanupSpec string        `mapstructure:"cleanup_spec"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// Load 读取配置：默认值 < config.yaml < .env / REMBG_* 环境变量 < 命令行参数
// configPath 为空或文件不存在时只用默认值和环境变量
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	// 加载 .env 文件（没有就忽略）
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REMBG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 同时认 TELEGRAM_TOKEN
	_ = v.BindEnv("telegram.token", "REMBG_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.Removal.Threshold < 0 || c.Removal.Threshold > 255 {
		return fmt.Errorf("removal.threshold must be within 0..255, got %d", c.Removal.Threshold)
	}
	if c.Removal.MaxSize < 0 {
		return fmt.Errorf("removal.max_size must not be negative, got %d", c.Removal.MaxSize)
	}
	if c.Engine.InputWidth <= 0 || c.Engine.InputHeight <= 0 {
		return fmt.Errorf("engine input size must be positive, got %dx%d", c.Engine.InputWidth, c.Engine.InputHeight)
	}
	return nil
}

// flagKeys 命令行参数名 -> 配置键
var flagKeys = map[string]string{
	"model":     "engine.model",
	"engine":    "engine.url",
	"threshold": "removal.threshold",
	"binary":    "removal.binary",
	"sticker":   "removal.sticker",
	"trim":      "removal.trim",
	"max-size":  "removal.max_size",
	"quality":   "output.quality",
	"log-mode":  "log.mode",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.url", "http://localhost:8000")
	v.SetDefault("engine.model", "u2net")
	v.SetDefault("engine.input_name", "input.1")
	v.SetDefault("engine.output_name", "")
	v.SetDefault("engine.timeout", 60*time.Second)
	v.SetDefault("engine.input_width", 320)
	v.SetDefault("engine.input_height", 320)

	v.SetDefault("removal.threshold", 160)
	v.SetDefault("removal.binary", false)
	v.SetDefault("removal.sticker", false)
	v.SetDefault("removal.trim", false)
	v.SetDefault("removal.max_size", 0)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_size", 10*1024*1024)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.quality", 95)
	v.SetDefault("output.retention", 24*time.Hour)
	v.SetDefault("output.cleanup_spec", "@every 10m")

	v.SetDefault("telegram.token", "")
	v.SetDefault("log.mode", "debug")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
