package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是服务的完整配置，来自 YAML 文件并可被环境变量覆盖。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Infra    InfraConfig    `yaml:"infra"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

type CheckoutConfig struct {
	MerchantID       string                 `yaml:"merchantId"`
	Country          string                 `yaml:"country"`
	Networks         []string               `yaml:"networks"`
	Capabilities     []string               `yaml:"capabilities"`
	ShippingType     string                 `yaml:"shippingType"`
	CouponsEnabled   bool                   `yaml:"couponsEnabled"`
	AttemptTimeout   time.Duration          `yaml:"attemptTimeout"`
	StartWaitTimeout time.Duration          `yaml:"startWaitTimeout"`
	Coupons          []CouponConfig         `yaml:"coupons"`
	ShippingMethods  []ShippingMethodConfig `yaml:"shippingMethods"`
	Catalog          CatalogConfig          `yaml:"catalog"`
	Guard            GuardConfig            `yaml:"guard"`
}

// CouponConfig 的金额保持字符串形式，交给 decimal 解析，避免浮点误差。
type CouponConfig struct {
	Code   string `yaml:"code"`
	Amount string `yaml:"amount"`
	Rule   string `yaml:"rule"`
}

type ShippingMethodConfig struct {
	Label          string `yaml:"label"`
	Amount         string `yaml:"amount"`
	Detail         string `yaml:"detail"`
	Identifier     string `yaml:"identifier"`
	StartAfterDays *int   `yaml:"startAfterDays"`
	EndAfterDays   *int   `yaml:"endAfterDays"`
}

type CatalogItemConfig struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// CatalogConfig.Source 取值 static 或 mysql；static 且 Items 为空时使用内置目录。
type CatalogConfig struct {
	Source string              `yaml:"source"`
	Items  []CatalogItemConfig `yaml:"items"`
}

// GuardConfig.Backend 取值 memory 或 redis。
type GuardConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type InfraConfig struct {
	Jaeger JaegerConfig `yaml:"jaeger"`
	Nacos  NacosConfig  `yaml:"nacos"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  RedisConfig  `yaml:"redis"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	OutcomeTopic string   `yaml:"outcomeTopic"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

var currentConfig atomic.Pointer[Config]

// DefaultConfig 返回演示商户的默认配置。
func DefaultConfig() *Config {
	start, end := 3, 5
	return &Config{
		App: AppConfig{Name: "checkout-service", Port: 8090, LogLevel: "info"},
		Checkout: CheckoutConfig{
			MerchantID:       "merchant.com.chicmic.test",
			Country:          "IN",
			Networks:         []string{"amex", "discover", "masterCard", "visa"},
			Capabilities:     []string{"3DS"},
			ShippingType:     "delivery",
			CouponsEnabled:   true,
			AttemptTimeout:   5 * time.Minute,
			StartWaitTimeout: 30 * time.Second,
			Coupons:          []CouponConfig{{Code: "FESTIVAL", Amount: "50"}},
			ShippingMethods: []ShippingMethodConfig{{
				Label:          "Delivery",
				Amount:         "1.00",
				Detail:         "Shoes sent to you address",
				Identifier:     "DELIVERY",
				StartAfterDays: &start,
				EndAfterDays:   &end,
			}},
			Catalog: CatalogConfig{Source: "static"},
			Guard:   GuardConfig{Backend: "memory", TTL: 10 * time.Minute},
		},
		Infra: InfraConfig{
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:  NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}, OutcomeTopic: "checkout-outcomes"},
			Redis:  RedisConfig{Addr: "localhost:6379"},
		},
	}
}

// Load 在默认配置之上读取 YAML 文件，path 为空时只使用默认值，然后应用环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 只检查启动必需的字段，业务含义的校验在组装领域对象时完成。
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return errors.New("app.name is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.Errorf("app.port %d is out of range", c.App.Port)
	}
	if c.Checkout.MerchantID == "" {
		return errors.New("checkout.merchantId is required")
	}
	switch c.Checkout.Catalog.Source {
	case "static", "mysql":
	default:
		return errors.Errorf("unknown catalog source %q", c.Checkout.Catalog.Source)
	}
	switch c.Checkout.Guard.Backend {
	case "memory", "redis":
	default:
		return errors.Errorf("unknown guard backend %q", c.Checkout.Guard.Backend)
	}
	if c.Checkout.Catalog.Source == "mysql" && c.Infra.MySQL.DSN == "" {
		return errors.New("infra.mysql.dsn is required when catalog source is mysql")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid PORT %q", v)
		}
		cfg.App.Port = port
	}

	cfg.Checkout.MerchantID = getEnv("MERCHANT_ID", cfg.Checkout.MerchantID)
	cfg.Checkout.Country = getEnv("MERCHANT_COUNTRY", cfg.Checkout.Country)
	cfg.Checkout.Catalog.Source = getEnv("CATALOG_SOURCE", cfg.Checkout.Catalog.Source)
	cfg.Checkout.Guard.Backend = getEnv("GUARD_BACKEND", cfg.Checkout.Guard.Backend)

	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	if v, ok := os.LookupEnv("NACOS_SERVER_ADDRS"); ok {
		cfg.Infra.Nacos.ServerAddrs = v
		cfg.Infra.Nacos.Enabled = v != ""
	}
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = splitList(v)
		cfg.Infra.Kafka.Enabled = len(cfg.Infra.Kafka.Brokers) > 0
	}
	cfg.Infra.Kafka.OutcomeTopic = getEnv("KAFKA_OUTCOME_TOPIC", cfg.Infra.Kafka.OutcomeTopic)
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Infra.Redis.Password)
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Init 从 CONFIG_FILE 加载配置并保存为当前配置。
func Init() (*Config, error) {
	cfg, err := Load(getEnv("CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}
	currentConfig.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回 Init 保存的配置，未初始化时返回默认配置。
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
