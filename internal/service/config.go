// internal/service/config.go
package service

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Exchange     ExchangeConfig     `mapstructure:"Exchange"`
	Retry        RetryConfig        `mapstructure:"Retry"`
	Subscription SubscriptionConfig `mapstructure:"Subscription"`
	Metrics      MetricsConfig      `mapstructure:"Metrics"`
}

// ExchangeConfig 定义了交易所的连接信息
type ExchangeConfig struct {
	APIKey     string
	SecretKey  string
	Passphrase string // Okx 独有
	RESTURL    string
	WSURL      string // 实盘公共频道
	WSPaperURL string // 模拟盘公共频道
	Simulated  bool   // true: 模拟盘, false: 实盘
	MarginCcy  string // 保证金币种，默认 USDT
}

// RetryConfig 瞬态错误码的重试参数
type RetryConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	RetryableCodes []string
}

// SubscriptionConfig 价格触发订阅的默认参数
type SubscriptionConfig struct {
	PollInterval   time.Duration // 轮询兜底的采样间隔
	Tolerance      float64       // 默认触发容差
	DefaultTimeout time.Duration // 上层等待唤醒的建议超时
}

type MetricsConfig struct {
	Addr string // /metrics 监听地址，空则不启动
}

// GlobalConfig 存储加载后的全局配置
var GlobalConfig Config

// LoadConfig 读取并解析配置文件
// 先加载 .env（若存在），再读 yaml，环境变量可覆盖敏感字段
func LoadConfig(configPath string) *Config {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)

	viper.SetDefault("Exchange.RESTURL", "https://www.okx.com")
	viper.SetDefault("Exchange.WSURL", "wss://ws.okx.com:8443/ws/v5/public")
	viper.SetDefault("Exchange.WSPaperURL", "wss://wspap.okx.com:8443/ws/v5/public")
	viper.SetDefault("Exchange.Simulated", true)
	viper.SetDefault("Exchange.MarginCcy", "USDT")
	viper.SetDefault("Retry.MaxRetries", 2)
	viper.SetDefault("Retry.BaseDelay", 300*time.Millisecond)
	viper.SetDefault("Retry.RetryableCodes", []string{"50001"})
	viper.SetDefault("Subscription.PollInterval", 5*time.Second)
	viper.SetDefault("Subscription.Tolerance", 0.0)
	viper.SetDefault("Subscription.DefaultTimeout", 1500*time.Second)

	// API 凭证默认从环境变量读取，避免写进 yaml
	viper.AutomaticEnv()
	_ = viper.BindEnv("Exchange.APIKey", "OKX_API_KEY")
	_ = viper.BindEnv("Exchange.SecretKey", "OKX_API_SECRET")
	_ = viper.BindEnv("Exchange.Passphrase", "OKX_API_PASSPHRASE")
	_ = viper.BindEnv("Exchange.Simulated", "OKX_SIMULATED")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 没有配置文件时完全依赖默认值和环境变量
			log.Printf("Config file not found, using defaults and env: %s", err)
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode config into struct: %s", err)
	}

	return &GlobalConfig
}
