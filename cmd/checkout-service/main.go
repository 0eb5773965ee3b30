package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"paysheet/internal/pkg/bootstrap"
	"paysheet/internal/pkg/logger"
	"paysheet/internal/service/checkout/application"
	"paysheet/internal/service/checkout/infrastructure/adapter"
	"paysheet/internal/service/checkout/interfaces"
)

// main 是应用的组装根：创建并组装所有依赖项，然后启动服务。
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.Name, cfg.App.LogLevel)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      cfg.App.Name,
		Port:             cfg.App.Port,
		RegisterHandlers: registerCheckout,
	})
}

func registerCheckout(appCtx *bootstrap.AppCtx) error {
	ctx := context.Background()
	checkoutCfg := appCtx.Config.Checkout

	settings, err := settingsFromConfig(checkoutCfg)
	if err != nil {
		return err
	}
	rules, err := buildRules(settings.Coupons)
	if err != nil {
		return err
	}
	catalog, err := buildCatalog(ctx, appCtx.Config)
	if err != nil {
		return err
	}
	guard, err := buildGuard(ctx, appCtx)
	if err != nil {
		return err
	}
	publisher := buildPublisher(appCtx)

	gateway := adapter.NewWebSocketGateway()
	svc := application.NewCheckoutService(catalog, gateway, guard, publisher, rules, settings, otel.Tracer(appCtx.Config.App.Name))
	// 最后注册，关停时最先执行：等进行中的尝试发布完结果再关闭下游
	appCtx.RegisterCloser("checkout attempts", svc.Wait)

	interfaces.NewCheckoutHandler(svc, checkoutCfg.StartWaitTimeout).RegisterRoutes(appCtx.Mux)
	appCtx.Mux.HandleFunc("GET /ws/paysheet", gateway.ServeWS)

	log.Info().
		Str("merchant", settings.MerchantID).
		Str("country", string(settings.Country.Code)).
		Int("catalog_items", catalog.Len()).
		Int("coupons", len(settings.Coupons)).
		Msg("checkout service ready")
	return nil
}
