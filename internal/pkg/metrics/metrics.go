package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paysheet"

var (
	// CheckoutAttempts 按结果统计结束的结算尝试。
	CheckoutAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_attempts_total",
		Help:      "Checkout attempts by final outcome.",
	}, []string{"outcome"})

	CouponApplications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_applications_total",
		Help:      "Coupon code changes handled during checkout, by result.",
	}, []string{"result"})

	CheckoutInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "checkout_in_flight",
		Help:      "Checkout attempts currently presented to a payment sheet.",
	})
)
