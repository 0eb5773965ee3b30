package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"paysheet/internal/pkg/logger"
	"paysheet/internal/pkg/metrics"
	"paysheet/internal/pkg/tracing"
	"paysheet/internal/service/checkout/domain"
	"paysheet/internal/service/checkout/domain/port"
)

const (
	defaultAttemptTimeout = 5 * time.Minute
	releaseTimeout        = 3 * time.Second
)

// Settings 是商户侧的结算配置，在启动时组装好，运行期间只读。
type Settings struct {
	MerchantID      string
	Country         domain.CountryContext
	Networks        []domain.Network
	Capabilities    []domain.MerchantCapability
	ShippingType    domain.ShippingType
	ShippingMethods []domain.ShippingMethod
	Coupons         []domain.Coupon
	CouponsEnabled  bool
	AttemptTimeout  time.Duration
}

// activeCoupons 在关闭优惠码时返回空，计算器会原样保留摘要。
func (s Settings) activeCoupons() []domain.Coupon {
	if !s.CouponsEnabled {
		return nil
	}
	return s.Coupons
}

// CheckoutService 定义了结算服务提供的所有业务用例
type CheckoutService struct {
	catalog   *domain.Catalog
	gateway   port.PaymentGateway
	guard     port.AttemptGuard
	publisher port.OutcomePublisher
	rules     domain.RuleEngine
	settings  Settings
	tracer    trace.Tracer

	newID    func() string
	inFlight sync.WaitGroup
}

// NewCheckoutService 创建结算服务。rules 可以为 nil，此时忽略优惠券的适用条件。
func NewCheckoutService(
	catalog *domain.Catalog,
	gateway port.PaymentGateway,
	guard port.AttemptGuard,
	publisher port.OutcomePublisher,
	rules domain.RuleEngine,
	settings Settings,
	tracer trace.Tracer,
) *CheckoutService {
	if settings.AttemptTimeout <= 0 {
		settings.AttemptTimeout = defaultAttemptTimeout
	}
	if len(settings.Networks) == 0 {
		settings.Networks = domain.DefaultNetworks()
	}
	if settings.ShippingType == "" {
		settings.ShippingType = domain.ShippingTypeDelivery
	}
	return &CheckoutService{
		catalog:   catalog,
		gateway:   gateway,
		guard:     guard,
		publisher: publisher,
		rules:     rules,
		settings:  settings,
		tracer:    tracer,
		newID:     uuid.NewString,
	}
}

// Catalog 返回目录中的全部商品
func (s *CheckoutService) Catalog() []domain.Item {
	return s.catalog.Items()
}

// Item 按下标返回商品
func (s *CheckoutService) Item(index int) (domain.Item, error) {
	return s.catalog.Item(index)
}

// Quote 计算商品未使用优惠码时的摘要
func (s *CheckoutService) Quote(ctx context.Context, index int) (*QuoteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.Quote")
	defer span.End()
	span.SetAttributes(attribute.Int("catalog.index", index))

	item, err := s.catalog.Item(index)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	items, err := domain.ComputeBaseline(item)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	logger.Ctx(ctx).Debug().Str("item", item.Name).Str("total", items[len(items)-1].Amount.StringFixed(2)).Msg("quote computed")
	return &QuoteResponse{Item: item, Country: s.settings.Country, LineItems: items}, nil
}

// PreviewCoupon 在基准摘要上试用优惠码，不会开始结算
func (s *CheckoutService) PreviewCoupon(ctx context.Context, index int, code string) (*QuoteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.PreviewCoupon")
	defer span.End()
	span.SetAttributes(
		attribute.Int("catalog.index", index),
		attribute.String("coupon.code", code),
	)

	quote, err := s.Quote(ctx, index)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if err := s.checkEligibility(ctx, quote.Item, code); err != nil {
		recordError(span, err)
		return nil, err
	}
	items, err := domain.ApplyCoupon(quote.LineItems, code, s.settings.activeCoupons())
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	quote.LineItems = items
	return quote, nil
}

// Availability 查询会话所在设备的支付能力
func (s *CheckoutService) Availability(ctx context.Context, sessionID string) (domain.Availability, error) {
	ctx, span := s.tracer.Start(ctx, "service.Availability")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.session", sessionID))

	availability, err := s.gateway.Availability(ctx, sessionID, s.settings.Networks)
	if err != nil {
		recordError(span, err)
		return domain.Availability{}, err
	}
	span.SetAttributes(
		attribute.Bool("availability.can_make_payments", availability.CanMakePayments),
		attribute.Bool("availability.can_setup_cards", availability.CanSetupCards),
	)
	return availability, nil
}

// StartCheckout 为会话开始一次结算尝试，返回尝试 id。
//
// 设备不支持时同步返回 ErrUnsupportedPaymentMethod，会话已有进行中的尝试时
// 返回 ErrCheckoutInProgress，这两种情况都不会创建尝试。成功返回后 completion
// 在另一个 goroutine 中恰好被调用一次。
func (s *CheckoutService) StartCheckout(ctx context.Context, req *StartCheckoutRequest, completion func(domain.CheckoutResult)) (string, error) {
	if completion == nil {
		return "", errors.New("completion callback is required")
	}

	ctx, span := s.tracer.Start(ctx, "service.StartCheckout")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.session", req.SessionID),
		attribute.Int("catalog.index", req.ItemIndex),
	)

	item, err := s.catalog.Item(req.ItemIndex)
	if err != nil {
		recordError(span, err)
		return "", err
	}

	availability, err := s.gateway.Availability(ctx, req.SessionID, s.settings.Networks)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	if !availability.CanMakePayments {
		recordError(span, domain.ErrUnsupportedPaymentMethod)
		return "", domain.ErrUnsupportedPaymentMethod
	}

	attempt, err := domain.NewAttempt(s.newID(), req.SessionID, item, s.settings.Country, s.settings.activeCoupons(), s.settings.ShippingMethods)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("checkout.attempt_id", attempt.ID))

	acquired, err := s.guard.Acquire(ctx, req.SessionID, attempt.ID)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	if !acquired {
		recordError(span, domain.ErrCheckoutInProgress)
		return "", domain.ErrCheckoutInProgress
	}

	// 尝试的生命周期长于发起它的请求
	runCtx, cancel := context.WithTimeout(tracing.DetachedContext(ctx), s.settings.AttemptTimeout)
	r := &attemptRun{
		svc:        s,
		attempt:    attempt,
		completion: completion,
		cancel:     cancel,
	}
	r.ctx, r.span = s.tracer.Start(runCtx, "service.RunAttempt", trace.WithAttributes(
		attribute.String("checkout.attempt_id", attempt.ID),
		attribute.String("checkout.session", attempt.SessionID),
		attribute.String("item.name", item.Name),
	))

	metrics.CheckoutInFlight.Inc()
	s.inFlight.Add(1)

	notifications, err := s.gateway.Present(r.ctx, s.paymentRequest(attempt))
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("attempt_id", attempt.ID).Msg("gateway refused to present payment sheet")
		go r.finish(domain.CheckoutResult{AttemptID: attempt.ID, Err: fmt.Errorf("%w: %v", domain.ErrPresentationFailure, err)})
		return attempt.ID, nil
	}

	logger.Ctx(ctx).Info().Str("attempt_id", attempt.ID).Str("session", req.SessionID).Str("item", item.Name).Msg("checkout attempt started")
	go r.loop(notifications)
	return attempt.ID, nil
}

// Wait 阻塞直到所有进行中的尝试结束或 ctx 到期。
func (s *CheckoutService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CheckoutService) paymentRequest(attempt *domain.Attempt) *domain.PaymentRequest {
	return &domain.PaymentRequest{
		AttemptID:            attempt.ID,
		SessionID:            attempt.SessionID,
		MerchantID:           s.settings.MerchantID,
		Country:              attempt.Country,
		SupportedNetworks:    s.settings.Networks,
		MerchantCapabilities: s.settings.Capabilities,
		SummaryItems:         attempt.Items.Clone(),
		ShippingType:         s.settings.ShippingType,
		ShippingMethods:      attempt.ShippingMethods,
		SupportsCouponCode:   s.settings.CouponsEnabled,
	}
}

// checkEligibility 评估命中券的适用条件。没有命中时交给计算器报告无效码。
func (s *CheckoutService) checkEligibility(ctx context.Context, item domain.Item, code string) error {
	if s.rules == nil || code == "" {
		return nil
	}
	coupon, ok := domain.FindCoupon(s.settings.activeCoupons(), code)
	if !ok || coupon.Rule == "" {
		return nil
	}

	price, _ := item.Price.Float64()
	eligible, err := s.rules.Evaluate(coupon.Rule, domain.Fact{
		Code:     coupon.Code,
		Price:    price,
		Country:  string(s.settings.Country.Code),
		Currency: s.settings.Country.CurrencyCode,
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("coupon", coupon.Code).Msg("coupon rule evaluation failed")
		return fmt.Errorf("%w: %s", domain.ErrCouponNotApplicable, coupon.Code)
	}
	if !eligible {
		return fmt.Errorf("%w: %s", domain.ErrCouponNotApplicable, coupon.Code)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// outcomeLabel 是 checkout_attempts_total 的 outcome 标签。
func outcomeLabel(result domain.CheckoutResult) string {
	switch {
	case result.Success:
		return "success"
	case errors.Is(result.Err, domain.ErrPresentationFailure):
		return "presentation_failure"
	case errors.Is(result.Err, domain.ErrShippingCountryMismatch):
		return "country_mismatch"
	case errors.Is(result.Err, domain.ErrCheckoutCancelled):
		return "cancelled"
	case errors.Is(result.Err, domain.ErrGatewayClosed):
		return "gateway_closed"
	case errors.Is(result.Err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failure"
	}
}
