package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"paysheet/internal/pkg/logger"
	"paysheet/internal/pkg/metrics"
	"paysheet/internal/service/checkout/domain"
	"paysheet/internal/service/checkout/domain/port"
)

// attemptRun 驱动一次尝试：消费网关通知，回复优惠码和授权，最后恰好完成一次。
type attemptRun struct {
	svc        *CheckoutService
	attempt    *domain.Attempt
	completion func(domain.CheckoutResult)

	ctx    context.Context
	span   trace.Span
	cancel context.CancelFunc

	// decided 是授权阶段确定的结果，在 Finished 时交付。
	decided *domain.CheckoutResult
	once    sync.Once
}

func (r *attemptRun) loop(notifications <-chan port.Notification) {
	for {
		select {
		case <-r.ctx.Done():
			r.finish(r.resultOr(r.ctx.Err()))
			return
		case n, ok := <-notifications:
			if !ok {
				r.finish(r.resultOr(domain.ErrGatewayClosed))
				return
			}
			if done := r.handle(n); done {
				return
			}
		}
	}
}

// handle 处理一条通知，返回 true 表示尝试已经结束。
func (r *attemptRun) handle(n port.Notification) bool {
	log := logger.Ctx(r.ctx).With().Str("attempt_id", r.attempt.ID).Stringer("notification", n.Kind).Logger()
	r.span.AddEvent(n.Kind.String())

	switch n.Kind {
	case port.NotificationPresentResult:
		if !n.Presented {
			r.attempt.MarkAsIdle()
			log.Warn().Msg("payment sheet was not presented")
			r.finish(domain.CheckoutResult{AttemptID: r.attempt.ID, Err: domain.ErrPresentationFailure})
			return true
		}
		if err := r.attempt.MarkAsPresenting(); err != nil {
			log.Warn().Err(err).Msg("unexpected present result")
		}

	case port.NotificationCouponCodeChanged:
		update := r.changeCoupon(n.CouponCode)
		if n.CouponReply != nil {
			select {
			case n.CouponReply <- update:
			default:
				log.Warn().Msg("coupon reply dropped, reply channel is full")
			}
		}

	case port.NotificationAuthorized:
		result := r.authorize(n.Payment)
		if n.AuthReply != nil {
			select {
			case n.AuthReply <- result:
			default:
				log.Warn().Msg("authorization reply dropped, reply channel is full")
			}
		}

	case port.NotificationFinished:
		r.attempt.MarkAsIdle()
		r.finish(r.resultOr(domain.ErrCheckoutCancelled))
		return true

	default:
		log.Warn().Int("kind", int(n.Kind)).Msg("ignoring unknown notification")
	}
	return false
}

func (r *attemptRun) changeCoupon(code string) domain.CouponUpdate {
	log := logger.Ctx(r.ctx)

	if r.attempt.State != domain.StatePresenting {
		metrics.CouponApplications.WithLabelValues("out_of_order").Inc()
		log.Warn().Str("attempt_id", r.attempt.ID).Str("state", string(r.attempt.State)).Msg("coupon change outside of presentation")
		return r.attempt.CouponRejected(domain.ErrInvalidTransition)
	}

	if err := r.svc.checkEligibility(r.ctx, r.attempt.Item, code); err != nil {
		metrics.CouponApplications.WithLabelValues("not_applicable").Inc()
		log.Info().Str("attempt_id", r.attempt.ID).Str("coupon", code).Msg("coupon not applicable")
		return r.attempt.CouponRejected(err)
	}

	update, err := r.attempt.ChangeCoupon(code)
	if err != nil {
		metrics.CouponApplications.WithLabelValues("invalid").Inc()
		log.Info().Str("attempt_id", r.attempt.ID).Str("coupon", code).Msg("coupon code rejected")
		return update
	}

	result := "applied"
	if code == "" {
		result = "cleared"
	}
	metrics.CouponApplications.WithLabelValues(result).Inc()
	r.span.SetAttributes(attribute.String("coupon.code", r.attempt.CouponCode))
	log.Info().Str("attempt_id", r.attempt.ID).Str("coupon", code).Str("total", r.attempt.Total().Amount.StringFixed(2)).Msg("summary recomputed")
	return update
}

func (r *attemptRun) authorize(payment *domain.AuthorizedPayment) domain.AuthorizationResult {
	log := logger.Ctx(r.ctx).With().Str("attempt_id", r.attempt.ID).Logger()

	if err := r.attempt.MarkAsAuthorized(); err != nil {
		log.Warn().Err(err).Msg("authorization outside of presentation")
		return domain.AuthorizationResult{Status: domain.AuthorizationFailure}
	}
	if payment == nil {
		r.attempt.MarkAsIdle()
		r.decided = &domain.CheckoutResult{AttemptID: r.attempt.ID, Err: errors.New("authorization carried no payment")}
		return domain.AuthorizationResult{Status: domain.AuthorizationFailure}
	}

	if errs := r.attempt.CheckShippingCountry(payment); len(errs) > 0 {
		r.attempt.MarkAsIdle()
		log.Info().Str("shipping_country", payment.ShippingCountryCode()).Str("expected", string(r.attempt.Country.Code)).Msg("shipping country mismatch")
		r.decided = &domain.CheckoutResult{AttemptID: r.attempt.ID, Err: domain.ErrShippingCountryMismatch}
		return domain.AuthorizationResult{Status: domain.AuthorizationFailure, Errors: errs}
	}

	token := payment.Token
	r.decided = &domain.CheckoutResult{AttemptID: r.attempt.ID, Success: true, Token: &token}
	log.Info().Str("total", r.attempt.Total().Amount.StringFixed(2)).Msg("payment authorized")
	return domain.AuthorizationResult{Status: domain.AuthorizationSuccess}
}

// resultOr 返回授权阶段确定的结果，没有时以 err 失败。
func (r *attemptRun) resultOr(err error) domain.CheckoutResult {
	if r.decided != nil {
		return *r.decided
	}
	return domain.CheckoutResult{AttemptID: r.attempt.ID, Err: err}
}

// finish 释放会话、发布结果事件，然后调用 completion。多次调用只生效一次。
func (r *attemptRun) finish(result domain.CheckoutResult) {
	r.once.Do(func() {
		defer r.svc.inFlight.Done()
		defer r.cancel()
		defer r.span.End()

		metrics.CheckoutInFlight.Dec()
		metrics.CheckoutAttempts.WithLabelValues(outcomeLabel(result)).Inc()

		log := logger.Ctx(r.ctx).With().Str("attempt_id", r.attempt.ID).Bool("success", result.Success).Logger()
		if result.Err != nil {
			r.span.RecordError(result.Err)
			r.span.SetStatus(codes.Error, result.Err.Error())
			log.Info().Err(result.Err).Msg("checkout attempt failed")
		} else {
			log.Info().Msg("checkout attempt succeeded")
		}

		// r.ctx 可能已经超时，清理使用独立的短超时
		cleanupCtx, cancel := context.WithTimeout(trace.ContextWithSpan(context.Background(), r.span), releaseTimeout)
		defer cancel()

		if err := r.svc.guard.Release(cleanupCtx, r.attempt.SessionID, r.attempt.ID); err != nil {
			log.Error().Err(err).Msg("failed to release checkout session")
		}
		if r.svc.publisher != nil {
			if err := r.svc.publisher.PublishOutcome(cleanupCtx, r.event(result)); err != nil {
				log.Error().Err(err).Msg("failed to publish checkout outcome")
			}
		}

		r.completion(result)
	})
}

func (r *attemptRun) event(result domain.CheckoutResult) *domain.CheckoutCompleted {
	event := &domain.CheckoutCompleted{
		AttemptID:   r.attempt.ID,
		SessionID:   r.attempt.SessionID,
		ItemName:    r.attempt.Item.Name,
		Total:       r.attempt.Total().Amount,
		Currency:    r.attempt.Country.CurrencyCode,
		CouponCode:  r.attempt.CouponCode,
		Success:     result.Success,
		Token:       result.Token,
		CompletedAt: time.Now().Unix(),
	}
	if result.Err != nil {
		event.Reason = result.Err.Error()
	}
	return event
}
