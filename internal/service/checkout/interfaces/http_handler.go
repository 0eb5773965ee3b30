package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"paysheet/internal/pkg/logger"
	"paysheet/internal/service/checkout/application"
	"paysheet/internal/service/checkout/domain"
)

// CheckoutHandler 封装了 checkout 服务的 HTTP 处理器
type CheckoutHandler struct {
	service   *application.CheckoutService
	startWait time.Duration
}

// NewCheckoutHandler 创建处理器。startWait 是 /checkout/start 等待结果的最长时间。
func NewCheckoutHandler(service *application.CheckoutService, startWait time.Duration) *CheckoutHandler {
	if startWait <= 0 {
		startWait = 30 * time.Second
	}
	return &CheckoutHandler{service: service, startWait: startWait}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /catalog", h.handleCatalog)
	mux.HandleFunc("GET /catalog/item", h.handleCatalogItem)
	mux.HandleFunc("POST /checkout/quote", h.handleQuote)
	mux.HandleFunc("POST /checkout/coupon", h.handleCoupon)
	mux.HandleFunc("GET /checkout/availability", h.handleAvailability)
	mux.HandleFunc("POST /checkout/start", h.handleStart)
}

type quoteRequest struct {
	Index int    `json:"index"`
	Code  string `json:"code"`
}

func extract(r *http.Request) context.Context {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return logger.WithTrace(ctx)
}

func (h *CheckoutHandler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Catalog())
}

func (h *CheckoutHandler) handleCatalogItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	item, err := h.service.Item(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CheckoutHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.Quote(ctx, req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) handleCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.PreviewCoupon(ctx, req.Index, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	session := r.URL.Query().Get("session")
	if session == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}
	availability, err := h.service.Availability(ctx, session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

// handleStart 发起结算并等待结果。超过 startWait 时返回 202，结果随后通过事件发布。
func (h *CheckoutHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req application.StartCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}

	results := make(chan domain.CheckoutResult, 1)
	attemptID, err := h.service.StartCheckout(ctx, &req, func(result domain.CheckoutResult) {
		results <- result
	})
	if err != nil {
		writeError(w, err)
		return
	}

	timer := time.NewTimer(h.startWait)
	defer timer.Stop()

	select {
	case result := <-results:
		writeJSON(w, http.StatusOK, application.NewCheckoutResultResponse(result))
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, &application.CheckoutResultResponse{AttemptID: attemptID, Pending: true})
	case <-r.Context().Done():
		logger.Ctx(ctx).Info().Str("attempt_id", attemptID).Msg("client went away before checkout finished")
	}
}

// statusFor 根据领域错误返回 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidItem):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCouponCode),
		errors.Is(err, domain.ErrCouponNotApplicable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedPaymentMethod):
		return http.StatusPreconditionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
