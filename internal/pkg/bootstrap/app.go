package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"paysheet/internal/pkg/nacos"
	"paysheet/internal/pkg/tracing"
	"paysheet/internal/pkg/utils"
)

// AppCtx 是注册路由时交给各服务的公共资源。
type AppCtx struct {
	Mux    *http.ServeMux
	Config *Config
	Nacos  *nacos.Client

	mu      sync.Mutex
	closers []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// RegisterCloser 登记一个关停时执行的清理函数，按后进先出的顺序执行。
func (a *AppCtx) RegisterCloser(name string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// runClosers 逆序执行所有清理函数，单个失败不影响后续。
func (a *AppCtx) runClosers(ctx context.Context) {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.fn(ctx); err != nil {
			log.Error().Err(err).Str("closer", c.name).Msg("cleanup failed")
			continue
		}
		log.Info().Str("closer", c.name).Msg("closed")
	}
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx *AppCtx) error
}

// NewAppCtx 创建带有健康检查和指标端点的 AppCtx。
func NewAppCtx(cfg *Config) *AppCtx {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &AppCtx{Mux: mux, Config: cfg}
}

// StartService 封装了通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	appCtx := NewAppCtx(cfg)
	appCtx.RegisterCloser("tracer", tp.Shutdown)

	if cfg.Infra.Nacos.Enabled {
		registerNacos(appCtx, info)
	}

	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			appCtx.runClosers(context.Background())
			log.Fatal().Err(err).Msg("failed to register handlers")
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           appCtx.Mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Str("service", info.ServiceName).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先停止接收新请求，再按注册的逆序释放资源。
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	appCtx.runClosers(ctx)

	log.Info().Str("service", info.ServiceName).Msg("gracefully shut down")
}

func registerNacos(appCtx *AppCtx, info AppInfo) {
	nc := appCtx.Config.Infra.Nacos
	client, err := nacos.NewNacosClient(nc.ServerAddrs, nc.Namespace, nc.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize nacos client")
	}
	ip, err := utils.GetOutboundIP()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get outbound IP address")
	}
	if err := client.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to register service with nacos")
	}
	appCtx.Nacos = client
	appCtx.RegisterCloser("nacos", func(context.Context) error {
		defer client.Close()
		return client.DeregisterServiceInstance(info.ServiceName, ip, info.Port)
	})
}
