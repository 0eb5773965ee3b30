package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"paysheet/internal/pkg/bootstrap"
	"paysheet/internal/pkg/mq"
	"paysheet/internal/service/checkout/application"
	"paysheet/internal/service/checkout/domain"
	"paysheet/internal/service/checkout/domain/port"
	"paysheet/internal/service/checkout/infrastructure/adapter"
	"paysheet/internal/service/checkout/infrastructure/catalog"
	"paysheet/internal/service/checkout/infrastructure/rule"
)

// settingsFromConfig 把配置转换成领域对象，金额和国家码在这里校验。
func settingsFromConfig(cfg bootstrap.CheckoutConfig) (application.Settings, error) {
	code, err := domain.ParseCountry(cfg.Country)
	if err != nil {
		return application.Settings{}, err
	}

	coupons := make([]domain.Coupon, 0, len(cfg.Coupons))
	for _, c := range cfg.Coupons {
		amount, err := decimal.NewFromString(c.Amount)
		if err != nil {
			return application.Settings{}, errors.Wrapf(err, "coupon %s: invalid amount %q", c.Code, c.Amount)
		}
		coupon := domain.Coupon{Code: c.Code, Amount: amount, Rule: c.Rule}
		if err := coupon.Validate(); err != nil {
			return application.Settings{}, err
		}
		coupons = append(coupons, coupon)
	}

	methods := make([]domain.ShippingMethod, 0, len(cfg.ShippingMethods))
	for _, m := range cfg.ShippingMethods {
		amount, err := decimal.NewFromString(m.Amount)
		if err != nil {
			return application.Settings{}, errors.Wrapf(err, "shipping method %s: invalid amount %q", m.Label, m.Amount)
		}
		methods = append(methods, domain.ShippingMethod{
			Label:          m.Label,
			Amount:         amount,
			Detail:         m.Detail,
			Identifier:     m.Identifier,
			StartAfterDays: m.StartAfterDays,
			EndAfterDays:   m.EndAfterDays,
		})
	}

	networks := make([]domain.Network, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		networks = append(networks, domain.Network(n))
	}
	capabilities := make([]domain.MerchantCapability, 0, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		capabilities = append(capabilities, domain.MerchantCapability(c))
	}

	return application.Settings{
		MerchantID:      cfg.MerchantID,
		Country:         code.Context(),
		Networks:        networks,
		Capabilities:    capabilities,
		ShippingType:    domain.ShippingType(cfg.ShippingType),
		ShippingMethods: methods,
		Coupons:         coupons,
		CouponsEnabled:  cfg.CouponsEnabled,
		AttemptTimeout:  cfg.AttemptTimeout,
	}, nil
}

// buildRules 在有券带条件时创建 CEL 引擎，并提前编译所有条件。
func buildRules(coupons []domain.Coupon) (domain.RuleEngine, error) {
	var engine *rule.CELRuleEngine
	for _, c := range coupons {
		if c.Rule == "" {
			continue
		}
		if engine == nil {
			var err error
			if engine, err = rule.NewCELRuleEngine(); err != nil {
				return nil, err
			}
		}
		if err := engine.Compile(c.Rule); err != nil {
			return nil, errors.Wrapf(err, "coupon %s", c.Code)
		}
	}
	if engine == nil {
		return nil, nil
	}
	return engine, nil
}

func staticCatalog(items []bootstrap.CatalogItemConfig) (*domain.Catalog, error) {
	if len(items) == 0 {
		return domain.DefaultCatalog(), nil
	}
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "catalog item %s: invalid price %q", it.Name, it.Price)
		}
		out = append(out, domain.Item{Name: it.Name, Price: price})
	}
	return domain.NewCatalog(out)
}

// buildCatalog 按配置从静态列表或 MySQL 加载目录。MySQL 只在启动时读一次。
func buildCatalog(ctx context.Context, cfg *bootstrap.Config) (*domain.Catalog, error) {
	if cfg.Checkout.Catalog.Source != "mysql" {
		return staticCatalog(cfg.Checkout.Catalog.Items)
	}

	db, err := gorm.Open(mysql.Open(cfg.Infra.MySQL.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mysql")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB from gorm")
	}
	defer sqlDB.Close()

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return catalog.NewGormCatalogRepository(db).Load(loadCtx)
}

func buildGuard(ctx context.Context, appCtx *bootstrap.AppCtx) (port.AttemptGuard, error) {
	cfg := appCtx.Config
	if cfg.Checkout.Guard.Backend != "redis" {
		return adapter.NewMemoryAttemptGuard(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Infra.Redis.Addr,
		Password: cfg.Infra.Redis.Password,
		DB:       cfg.Infra.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Infra.Redis.Addr)
	}
	appCtx.RegisterCloser("redis", func(context.Context) error { return client.Close() })
	return adapter.NewRedisAttemptGuard(client, cfg.Checkout.Guard.TTL), nil
}

func buildPublisher(appCtx *bootstrap.AppCtx) port.OutcomePublisher {
	kc := appCtx.Config.Infra.Kafka
	if !kc.Enabled {
		log.Info().Msg("kafka disabled, checkout outcomes are logged only")
		return adapter.NewLogOutcomeAdapter()
	}
	publisher := adapter.NewOutcomeKafkaAdapter(mq.NewKafkaWriter(kc.Brokers, kc.OutcomeTopic))
	appCtx.RegisterCloser("kafka writer", func(context.Context) error { return publisher.Close() })
	return publisher
}
