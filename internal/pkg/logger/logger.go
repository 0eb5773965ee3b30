package logger

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"paysheet/internal/pkg/tracing"
)

func init() {
	// 没有挂 logger 的 context 也返回全局 logger，而不是被禁用的 logger
	zerolog.DefaultContextLogger = &log.Logger
}

// Init 配置全局 logger：时间戳格式、级别和 service 字段。
func Init(serviceName, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

// Ctx 返回 context 上的 logger，并带上当前链路的 trace_id。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if traceID := tracing.GetTraceIDFromContext(ctx); traceID != "" {
		withTrace := l.With().Str("trace_id", traceID).Logger()
		return &withTrace
	}
	return l
}

// WithTrace 把带 trace_id 的 logger 存入 context，供后续 Ctx 直接取用。
func WithTrace(ctx context.Context) context.Context {
	return Ctx(ctx).WithContext(ctx)
}
