package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysheet/internal/service/checkout/domain"
	"paysheet/internal/service/checkout/domain/port"
)

func startGateway(t *testing.T) (*WebSocketGateway, string) {
	t.Helper()
	g := NewWebSocketGateway()
	srv := httptest.NewServer(http.HandlerFunc(g.ServeWS))
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialDevice(t *testing.T, url, session string, hello Frame) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?session="+session, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	hello.Type = FrameHello
	require.NoError(t, conn.WriteJSON(hello))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func nextNotification(t *testing.T, ch <-chan port.Notification) (port.Notification, bool) {
	t.Helper()
	select {
	case n, ok := <-ch:
		return n, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return port.Notification{}, false
	}
}

func waitAvailability(t *testing.T, g *WebSocketGateway, session string, networks []domain.Network) domain.Availability {
	t.Helper()
	var availability domain.Availability
	require.Eventually(t, func() bool {
		var err error
		availability, err = g.Availability(context.Background(), session, networks)
		return err == nil && availability.CanMakePayments
	}, 2*time.Second, 10*time.Millisecond)
	return availability
}

func TestWebSocketGateway_AvailabilityWithoutDevice(t *testing.T) {
	g, _ := startGateway(t)

	availability, err := g.Availability(context.Background(), "nobody", domain.DefaultNetworks())
	require.NoError(t, err)
	assert.False(t, availability.CanMakePayments)
	assert.False(t, availability.CanSetupCards)
}

func TestWebSocketGateway_AvailabilityPerNetwork(t *testing.T) {
	g, url := startGateway(t)
	dialDevice(t, url, "s-1", Frame{CanMakePayments: true, Networks: []domain.Network{"jcb"}})

	availability := waitAvailability(t, g, "s-1", domain.DefaultNetworks())
	assert.True(t, availability.CanMakePayments)
	assert.False(t, availability.CanSetupCards, "device has no card of a supported network")

	dialDevice(t, url, "s-2", Frame{CanMakePayments: true, Networks: []domain.Network{domain.NetworkVisa}})
	availability = waitAvailability(t, g, "s-2", domain.DefaultNetworks())
	assert.True(t, availability.CanSetupCards)
}

func TestWebSocketGateway_PresentAndRelayNotifications(t *testing.T) {
	g, url := startGateway(t)
	device := dialDevice(t, url, "s-1", Frame{CanMakePayments: true, Networks: domain.DefaultNetworks()})
	waitAvailability(t, g, "s-1", domain.DefaultNetworks())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	baseline, err := domain.ComputeBaseline(domain.Item{Name: "Jordan Retro 10", Price: decimal.RequireFromString("190.00")})
	require.NoError(t, err)
	req := &domain.PaymentRequest{AttemptID: "a-1", SessionID: "s-1", SummaryItems: baseline, SupportsCouponCode: true}

	notifications, err := g.Present(ctx, req)
	require.NoError(t, err)

	present := readFrame(t, device)
	assert.Equal(t, FramePresent, present.Type)
	require.NotNil(t, present.Request)
	require.Len(t, present.Request.SummaryItems, 3)
	assert.True(t, present.Request.SummaryItems[2].Amount.Equal(decimal.RequireFromString("199.50")))

	_, err = g.Present(ctx, &domain.PaymentRequest{AttemptID: "a-2", SessionID: "s-1"})
	assert.ErrorIs(t, err, ErrSessionBusy)

	require.NoError(t, device.WriteJSON(Frame{Type: FramePresented, AttemptID: "a-1", Presented: true}))
	n, ok := nextNotification(t, notifications)
	require.True(t, ok)
	assert.Equal(t, port.NotificationPresentResult, n.Kind)
	assert.True(t, n.Presented)

	require.NoError(t, device.WriteJSON(Frame{Type: FrameCouponChanged, AttemptID: "a-1", CouponCode: "festival"}))
	n, ok = nextNotification(t, notifications)
	require.True(t, ok)
	assert.Equal(t, port.NotificationCouponCodeChanged, n.Kind)
	assert.Equal(t, "festival", n.CouponCode)
	n.CouponReply <- domain.CouponUpdate{Items: baseline}

	update := readFrame(t, device)
	assert.Equal(t, FrameCouponUpdate, update.Type)
	require.NotNil(t, update.CouponUpdate)
	assert.Len(t, update.CouponUpdate.Items, 3)

	payment := &domain.AuthorizedPayment{
		Token: domain.PaymentToken{TransactionIdentifier: "tx-1", PaymentData: []byte("opaque")},
		ShippingContact: &domain.Contact{PostalAddress: &domain.PostalAddress{ISOCountryCode: "IN"}},
	}
	require.NoError(t, device.WriteJSON(Frame{Type: FrameAuthorized, AttemptID: "a-1", Payment: payment}))
	n, ok = nextNotification(t, notifications)
	require.True(t, ok)
	assert.Equal(t, port.NotificationAuthorized, n.Kind)
	require.NotNil(t, n.Payment)
	assert.Equal(t, "IN", n.Payment.ShippingCountryCode())
	n.AuthReply <- domain.AuthorizationResult{Status: domain.AuthorizationSuccess}

	result := readFrame(t, device)
	assert.Equal(t, FrameAuthorizationResult, result.Type)
	require.NotNil(t, result.AuthorizationResult)
	assert.Equal(t, domain.AuthorizationSuccess, result.AuthorizationResult.Status)

	require.NoError(t, device.WriteJSON(Frame{Type: FrameFinished, AttemptID: "a-1"}))
	n, ok = nextNotification(t, notifications)
	require.True(t, ok)
	assert.Equal(t, port.NotificationFinished, n.Kind)

	_, ok = nextNotification(t, notifications)
	assert.False(t, ok, "channel is closed after finished")
}

func TestWebSocketGateway_DisconnectClosesNotifications(t *testing.T) {
	g, url := startGateway(t)
	device := dialDevice(t, url, "s-1", Frame{CanMakePayments: true, Networks: domain.DefaultNetworks()})
	waitAvailability(t, g, "s-1", domain.DefaultNetworks())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifications, err := g.Present(ctx, &domain.PaymentRequest{AttemptID: "a-1", SessionID: "s-1"})
	require.NoError(t, err)
	readFrame(t, device)

	require.NoError(t, device.Close())

	_, ok := nextNotification(t, notifications)
	assert.False(t, ok)
}

func TestWebSocketGateway_UnknownAttemptRejected(t *testing.T) {
	g, url := startGateway(t)
	device := dialDevice(t, url, "s-1", Frame{CanMakePayments: true})
	waitAvailability(t, g, "s-1", nil)

	require.NoError(t, device.WriteJSON(Frame{Type: FrameFinished, AttemptID: "ghost"}))
	f := readFrame(t, device)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "ghost", f.AttemptID)
}

func TestWebSocketGateway_PresentWithoutDevice(t *testing.T) {
	g, _ := startGateway(t)
	_, err := g.Present(context.Background(), &domain.PaymentRequest{AttemptID: "a-1", SessionID: "nobody"})
	assert.ErrorIs(t, err, ErrSessionNotConnected)
}

func TestWebSocketGateway_AuthorizationResultSentWhenAttemptEndsRightAway(t *testing.T) {
	g, url := startGateway(t)
	device := dialDevice(t, url, "s-1", Frame{CanMakePayments: true, Networks: domain.DefaultNetworks()})
	waitAvailability(t, g, "s-1", domain.DefaultNetworks())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifications, err := g.Present(ctx, &domain.PaymentRequest{AttemptID: "a-1", SessionID: "s-1"})
	require.NoError(t, err)
	readFrame(t, device)

	require.NoError(t, device.WriteJSON(Frame{Type: FramePresented, AttemptID: "a-1", Presented: true}))
	nextNotification(t, notifications)

	payment := &domain.AuthorizedPayment{
		Token:           domain.PaymentToken{TransactionIdentifier: "tx-1"},
		ShippingContact: &domain.Contact{PostalAddress: &domain.PostalAddress{ISOCountryCode: "IN"}},
	}
	require.NoError(t, device.WriteJSON(Frame{Type: FrameAuthorized, AttemptID: "a-1", Payment: payment}))
	n, ok := nextNotification(t, notifications)
	require.True(t, ok)
	require.Equal(t, port.NotificationAuthorized, n.Kind)

	// Finished 紧跟在授权之后，编排方回复后立刻结束尝试
	require.NoError(t, device.WriteJSON(Frame{Type: FrameFinished, AttemptID: "a-1"}))
	n.AuthReply <- domain.AuthorizationResult{Status: domain.AuthorizationSuccess}
	n, ok = nextNotification(t, notifications)
	require.True(t, ok)
	require.Equal(t, port.NotificationFinished, n.Kind)
	cancel()

	result := readFrame(t, device)
	assert.Equal(t, FrameAuthorizationResult, result.Type)
	require.NotNil(t, result.AuthorizationResult)
	assert.Equal(t, domain.AuthorizationSuccess, result.AuthorizationResult.Status)
}
