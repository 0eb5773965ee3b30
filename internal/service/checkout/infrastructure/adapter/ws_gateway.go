package adapter

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"paysheet/internal/service/checkout/domain"
	"paysheet/internal/service/checkout/domain/port"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxFrameSize     = 64 * 1024
	helloWait        = 2 * time.Second
	sendBufferSize   = 16
	notificationSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

var (
	ErrSessionNotConnected = errors.New("no device connected for session")
	ErrSessionBusy         = errors.New("device is already presenting a payment sheet")
)

// WebSocketGateway 实现了 port.PaymentGateway。
// 持有支付面板的设备通过 websocket 按会话接入，请求和通知都以 JSON 帧传输。
type WebSocketGateway struct {
	lock     sync.RWMutex
	sessions map[string]*deviceSession
}

func NewWebSocketGateway() *WebSocketGateway {
	return &WebSocketGateway{sessions: make(map[string]*deviceSession)}
}

// deviceSession 是一条设备连接。同一时刻最多承载一次尝试。
type deviceSession struct {
	id   string
	conn *websocket.Conn
	send chan Frame
	done chan struct{}

	helloOnce sync.Once
	helloSeen chan struct{}

	mu      sync.Mutex
	hello   Frame
	attempt *attemptStream
}

// attemptStream 是一次尝试的通知通道。只有读协程发送和关闭它。
// replies 里按通知顺序排着等待中的回复，由转发协程依次写回设备。
type attemptStream struct {
	id            string
	ctx           context.Context
	notifications chan port.Notification
	replies       chan func() (Frame, bool)
	closed        bool
}

// ServeWS 把 HTTP 连接升级为 websocket，并阻塞到连接关闭。
func (g *WebSocketGateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
		return
	}

	s := &deviceSession{
		id:        sessionID,
		conn:      conn,
		send:      make(chan Frame, sendBufferSize),
		done:      make(chan struct{}),
		helloSeen: make(chan struct{}),
	}
	g.register(s)
	defer g.unregister(s)

	eg, ctx := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		defer close(s.done)
		return s.readPump()
	})
	eg.Go(func() error {
		return s.writePump(ctx)
	})
	if err := eg.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug().Err(err).Str("session", sessionID).Msg("device connection closed")
	}
}

func (g *WebSocketGateway) register(s *deviceSession) {
	g.lock.Lock()
	old := g.sessions[s.id]
	g.sessions[s.id] = s
	g.lock.Unlock()

	if old != nil {
		// 同一会话重连时踢掉旧连接，旧连接上的尝试随之结束
		_ = old.conn.Close()
	}
	log.Info().Str("session", s.id).Msg("device connected")
}

func (g *WebSocketGateway) unregister(s *deviceSession) {
	g.lock.Lock()
	if g.sessions[s.id] == s {
		delete(g.sessions, s.id)
	}
	g.lock.Unlock()
	_ = s.conn.Close()
	log.Info().Str("session", s.id).Msg("device disconnected")
}

func (g *WebSocketGateway) session(sessionID string) (*deviceSession, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	s, ok := g.sessions[sessionID]
	return s, ok
}

// Availability 根据设备的 hello 帧回答支付能力。没有设备接入时视为不支持。
func (g *WebSocketGateway) Availability(ctx context.Context, sessionID string, networks []domain.Network) (domain.Availability, error) {
	s, ok := g.session(sessionID)
	if !ok {
		return domain.Availability{}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, helloWait)
	defer cancel()
	select {
	case <-s.helloSeen:
	case <-s.done:
		return domain.Availability{}, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return domain.Availability{}, ctx.Err()
		}
		return domain.Availability{}, nil
	}

	s.mu.Lock()
	hello := s.hello
	s.mu.Unlock()

	return domain.Availability{
		CanMakePayments: hello.CanMakePayments,
		CanSetupCards:   hello.CanMakePayments && intersects(hello.Networks, networks),
	}, nil
}

func intersects(have, want []domain.Network) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Present 把支付请求发给会话的设备，返回这次尝试的通知通道。
func (g *WebSocketGateway) Present(ctx context.Context, req *domain.PaymentRequest) (<-chan port.Notification, error) {
	s, ok := g.session(req.SessionID)
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotConnected, "session %s", req.SessionID)
	}

	stream := &attemptStream{
		id:            req.AttemptID,
		ctx:           ctx,
		notifications: make(chan port.Notification, notificationSize),
		replies:       make(chan func() (Frame, bool), notificationSize),
	}

	s.mu.Lock()
	if s.attempt != nil {
		s.mu.Unlock()
		return nil, errors.Wrapf(ErrSessionBusy, "session %s", req.SessionID)
	}
	s.attempt = stream
	s.mu.Unlock()

	if err := s.enqueue(ctx, Frame{Type: FramePresent, AttemptID: req.AttemptID, Request: req}); err != nil {
		s.detach(stream)
		return nil, err
	}

	go s.forwardReplies(stream)
	return stream.notifications, nil
}

// forwardReplies 按顺序把编排方的回复写回设备。调用方放弃这次尝试后让出会话。
func (s *deviceSession) forwardReplies(stream *attemptStream) {
	defer s.detach(stream)
	for {
		select {
		case await := <-stream.replies:
			f, ok := await()
			if !ok {
				return
			}
			if !s.push(f) {
				log.Debug().Str("session", s.id).Str("attempt_id", stream.id).Msg("reply not forwarded, device disconnected")
				return
			}
		case <-stream.ctx.Done():
			s.drainReplies(stream)
			return
		case <-s.done:
			return
		}
	}
}

// drainReplies 在尝试结束后把已经就绪的回复写完，没有就绪的直接丢弃。
func (s *deviceSession) drainReplies(stream *attemptStream) {
	for {
		select {
		case await := <-stream.replies:
			f, ok := await()
			if !ok {
				return
			}
			if !s.push(f) {
				return
			}
		default:
			return
		}
	}
}

func (s *deviceSession) detach(stream *attemptStream) {
	s.mu.Lock()
	if s.attempt == stream {
		s.attempt = nil
	}
	s.mu.Unlock()
}

func (s *deviceSession) current(attemptID string) *attemptStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil || s.attempt.id != attemptID {
		return nil
	}
	return s.attempt
}

// push 把已经确定的回复交给写协程，只在连接断开时放弃。
func (s *deviceSession) push(f Frame) bool {
	select {
	case s.send <- f:
		return true
	case <-s.done:
		return false
	}
}

// enqueue 把帧交给写协程。
func (s *deviceSession) enqueue(ctx context.Context, f Frame) error {
	select {
	case s.send <- f:
		return nil
	case <-s.done:
		return errors.Wrapf(ErrSessionNotConnected, "session %s", s.id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *deviceSession) readPump() error {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	defer s.closeAttempt()

	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(f)
	}
}

func (s *deviceSession) dispatch(f Frame) {
	if f.Type == FrameHello {
		s.mu.Lock()
		s.hello = f
		s.mu.Unlock()
		s.helloOnce.Do(func() { close(s.helloSeen) })
		return
	}

	stream := s.current(f.AttemptID)
	if stream == nil || stream.closed {
		s.reject(f, "unknown attempt")
		return
	}

	switch f.Type {
	case FramePresented:
		s.deliver(stream, port.Notification{Kind: port.NotificationPresentResult, Presented: f.Presented})
		if !f.Presented {
			s.finishAttempt(stream)
		}

	case FrameCouponChanged:
		reply := make(chan domain.CouponUpdate, 1)
		if s.deliver(stream, port.Notification{Kind: port.NotificationCouponCodeChanged, CouponCode: f.CouponCode, CouponReply: reply}) {
			s.awaitReply(stream, awaiting(s, stream, reply, func(u domain.CouponUpdate) Frame {
				return Frame{Type: FrameCouponUpdate, AttemptID: stream.id, CouponUpdate: &u}
			}))
		}

	case FrameAuthorized:
		reply := make(chan domain.AuthorizationResult, 1)
		if s.deliver(stream, port.Notification{Kind: port.NotificationAuthorized, Payment: f.Payment, AuthReply: reply}) {
			s.awaitReply(stream, awaiting(s, stream, reply, func(r domain.AuthorizationResult) Frame {
				return Frame{Type: FrameAuthorizationResult, AttemptID: stream.id, AuthorizationResult: &r}
			}))
		}

	case FrameFinished:
		s.deliver(stream, port.Notification{Kind: port.NotificationFinished})
		s.finishAttempt(stream)

	default:
		s.reject(f, "unknown frame type")
	}
}

// deliver 按序投递通知，调用方已放弃时返回 false。
func (s *deviceSession) deliver(stream *attemptStream, n port.Notification) bool {
	select {
	case stream.notifications <- n:
		return true
	case <-stream.ctx.Done():
		return false
	}
}

func (s *deviceSession) awaitReply(stream *attemptStream, await func() (Frame, bool)) {
	select {
	case stream.replies <- await:
		return
	default:
	}
	select {
	case stream.replies <- await:
	case <-stream.ctx.Done():
	}
}

// awaiting 返回一个等待单个回复并转换成帧的函数。
func awaiting[T any](s *deviceSession, stream *attemptStream, reply <-chan T, frame func(T) Frame) func() (Frame, bool) {
	return func() (Frame, bool) {
		// 回复已经就绪时优先取回复
		select {
		case v := <-reply:
			return frame(v), true
		default:
		}
		select {
		case v := <-reply:
			return frame(v), true
		case <-stream.ctx.Done():
			return Frame{}, false
		case <-s.done:
			return Frame{}, false
		}
	}
}

// finishAttempt 关闭通知通道并让出会话。
func (s *deviceSession) finishAttempt(stream *attemptStream) {
	if !stream.closed {
		stream.closed = true
		close(stream.notifications)
	}
	s.detach(stream)
}

// closeAttempt 在连接断开时关闭进行中的尝试。
func (s *deviceSession) closeAttempt() {
	s.mu.Lock()
	stream := s.attempt
	s.mu.Unlock()
	if stream != nil {
		s.finishAttempt(stream)
	}
}

func (s *deviceSession) reject(f Frame, reason string) {
	log.Warn().Str("session", s.id).Str("type", f.Type).Str("attempt_id", f.AttemptID).Msg(reason)
	select {
	case s.send <- Frame{Type: FrameError, AttemptID: f.AttemptID, Message: reason}:
	default:
	}
}

func (s *deviceSession) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				_ = s.conn.Close()
				return errors.Wrap(err, "write frame")
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return errors.Wrap(err, "write ping")
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
