package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/friendpicks/notifsync/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

// Config holds push channel connection settings
type Config struct {
	URL            string
	PingInterval   time.Duration // default: 54 seconds
	PongWait       time.Duration // default: 60 seconds
	WriteWait      time.Duration // default: 10 seconds
	ReconnectMin   time.Duration // default: 1 second
	ReconnectMax   time.Duration // default: 30 seconds
	MaxMessageSize int64         // default: 64 KiB
}

// PushChannel is a WebSocket client implementing notification.PushChannel.
// Run owns the connection; Subscribe and Unsubscribe may be called at any time.
type PushChannel struct {
	config Config
	tokens oauth2.TokenSource
	userID string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]map[string]notification.Handler
	joinFns  map[string]func()
}

var _ notification.PushChannel = (*PushChannel)(nil)

// NewPushChannel creates a push channel that joins as userID
func NewPushChannel(cfg Config, tokens oauth2.TokenSource, userID string, logger *slog.Logger) *PushChannel {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = (cfg.PongWait * 9) / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 << 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PushChannel{
		config: cfg,
		tokens: tokens,
		userID: userID,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger:   logger.With(slog.String("component", "push_channel")),
		handlers: make(map[string]map[string]notification.Handler),
		joinFns:  make(map[string]func()),
	}
}

// Subscribe registers handler for event
func (p *PushChannel) Subscribe(event string, handler notification.Handler) notification.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub := notification.Subscription{ID: uuid.NewString(), Event: event}
	if p.handlers[event] == nil {
		p.handlers[event] = make(map[string]notification.Handler)
	}
	p.handlers[event][sub.ID] = handler
	return sub
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (p *PushChannel) Unsubscribe(sub notification.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs, ok := p.handlers[sub.Event]
	if !ok {
		return
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(p.handlers, sub.Event)
	}
}

// OnJoin registers fn to run after every successful join, the first one included.
// The returned function detaches fn.
func (p *PushChannel) OnJoin(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.NewString()
	p.joinFns[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.joinFns, id)
	}
}

// Run connects, joins and reads events until ctx is done, reconnecting with
// exponential backoff whenever the connection drops.
func (p *PushChannel) Run(ctx context.Context) error {
	if p.userID == "" {
		return notification.ErrMissingIdentity
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.ReconnectMin
	policy.MaxInterval = p.config.ReconnectMax
	policy.MaxElapsedTime = 0

	operation := func() error {
		err := p.connect(ctx, func() {
			policy.Reset()
			p.fireJoin()
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("push channel disconnected, retrying", slog.Any("error", err), slog.Duration("retry_in", wait))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.logger.Info("push channel stopped")
		return nil
	}
	return err
}

// connect runs one connection until it fails. joined is called once the
// join handshake has been written.
func (p *PushChannel) connect(ctx context.Context, joined func()) error {
	target, header, err := p.endpoint()
	if err != nil {
		return err
	}

	conn, _, err := p.dialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("dial push channel: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	conn.SetReadLimit(p.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(p.config.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(p.config.PongWait))
		return nil
	})

	conn.SetWriteDeadline(time.Now().Add(p.config.WriteWait))
	if err := conn.WriteJSON(notification.NewJoinMessage(p.userID)); err != nil {
		return fmt.Errorf("join push channel: %w", err)
	}
	p.logger.Info("push channel joined", slog.String("user_id", p.userID))
	joined()

	go p.keepalive(ctx, conn, done)

	for {
		var ev notification.PushEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Warn("push channel closed unexpectedly", slog.Any("error", err))
			}
			return fmt.Errorf("read push channel: %w", err)
		}
		p.dispatch(ev)
	}
}

// keepalive pings the server and closes conn when ctx is cancelled so the
// blocked read returns.
func (p *PushChannel) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(p.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(p.config.WriteWait)); err != nil {
				p.logger.Debug("push channel ping failed", slog.Any("error", err))
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(p.config.WriteWait))
			conn.Close()
			return
		case <-done:
			return
		}
	}
}

func (p *PushChannel) endpoint() (string, http.Header, error) {
	u, err := url.Parse(p.config.URL)
	if err != nil {
		return "", nil, backoff.Permanent(fmt.Errorf("invalid push url: %w", err))
	}

	header := http.Header{}
	if p.tokens != nil {
		tok, err := p.tokens.Token()
		if err != nil {
			return "", nil, fmt.Errorf("push channel token: %w", err)
		}
		q := u.Query()
		q.Set("token", tok.AccessToken)
		u.RawQuery = q.Encode()
		tok.SetAuthHeader(&http.Request{Header: header})
	}
	return u.String(), header, nil
}

func (p *PushChannel) dispatch(ev notification.PushEvent) {
	p.mu.RLock()
	subs := p.handlers[ev.Event]
	handlers := make([]notification.Handler, 0, len(subs))
	for _, h := range subs {
		handlers = append(handlers, h)
	}
	p.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var payload notification.RecordPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		p.logger.Warn("dropping undecodable push event", slog.String("event", ev.Event), slog.Any("error", err))
		return
	}
	record, err := payload.ToRecord()
	if err != nil {
		p.logger.Warn("dropping malformed push event", slog.String("event", ev.Event), slog.Any("error", err))
		return
	}

	for _, h := range handlers {
		h(record)
	}
}

func (p *PushChannel) fireJoin() {
	p.mu.RLock()
	fns := make([]func(), 0, len(p.joinFns))
	for _, fn := range p.joinFns {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
