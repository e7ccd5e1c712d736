package redischan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mrjvadi/go-proxycall/proxy"
)

type Option func(*Bootstrap)

func WithLogger(l *zap.Logger) Option {
	return func(b *Bootstrap) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithChannelSize بافر کانال دریافت Pub/Sub را عوض می‌کند
func WithChannelSize(n int) Option {
	return func(b *Bootstrap) {
		if n > 0 {
			b.chanSize = n
		}
	}
}

// Bootstrap سازندهٔ endpoint روی Redis است و proxy.Bootstrap را پیاده می‌کند.
type Bootstrap struct {
	rdb      *redis.Client
	logger   *zap.Logger
	chanSize int
}

func New(client *redis.Client, options ...Option) *Bootstrap {
	b := &Bootstrap{rdb: client, logger: zap.NewNop(), chanSize: 1024}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Install روی کانال تماس‌گیرنده subscribe می‌کند، بعد فریم نصب را به طرف
// مقابل می‌فرستد. طرف مقابل با فریم ready جواب می‌دهد که سیگنال آمادگی است.
func (b *Bootstrap) Install(ctx context.Context, endpointURL, callerOrigin string) (proxy.Endpoint, error) {
	remoteOrigin := originFromURL(endpointURL)

	sub := b.rdb.Subscribe(ctx, channelFor(callerOrigin))
	// تضمین ثبت اشتراک قبل از اعلان نصب (الگوی رسمی go-redis)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelFor(callerOrigin), err)
	}

	epCtx, cancel := context.WithCancel(context.Background())
	ep := &endpoint{
		rdb:          b.rdb,
		sub:          sub,
		remoteOrigin: remoteOrigin,
		callerOrigin: callerOrigin,
		logger:       b.logger,
		msgs:         make(chan proxy.Message, b.chanSize),
		ready:        make(chan struct{}),
		ctx:          epCtx,
		cancel:       cancel,
	}
	go ep.loop(sub.Channel(redis.WithChannelSize(b.chanSize)))

	install := encodeFrame(frame{Origin: callerOrigin, Control: controlInstall})
	if err := b.rdb.Publish(ctx, channelFor(remoteOrigin), install).Err(); err != nil {
		_ = ep.Close()
		return nil, fmt.Errorf("announce install: %w", err)
	}
	return ep, nil
}

type endpoint struct {
	rdb          *redis.Client
	sub          *redis.PubSub
	remoteOrigin string
	callerOrigin string
	logger       *zap.Logger

	msgs      chan proxy.Message
	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// Post بدنه را JSON می‌کند و داخل پاکت سیمی به کانال مقصد می‌فرستد
func (e *endpoint) Post(payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	f := encodeFrame(frame{Origin: e.callerOrigin, Data: b})
	return e.rdb.Publish(e.ctx, channelFor(e.remoteOrigin), f).Err()
}

// AcceptsBinary: پاکت JSON روی Pub/Sub نمی‌تواند فایل باز حمل کند؛
// Session پیوست‌ها را قبل از ارسال inline می‌کند.
func (e *endpoint) AcceptsBinary() bool { return false }

func (e *endpoint) Messages() <-chan proxy.Message { return e.msgs }
func (e *endpoint) Ready() <-chan struct{}         { return e.ready }

func (e *endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		err = e.sub.Close()
	})
	return err
}

func (e *endpoint) loop(ch <-chan *redis.Message) {
	defer close(e.msgs)
	for msg := range ch {
		var f frame
		if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
			e.logger.Debug("undecodable frame dropped", zap.Error(err))
			continue
		}
		if f.Control == controlReady {
			e.readyOnce.Do(func() { close(e.ready) })
			continue
		}
		if f.Control != "" {
			continue
		}
		select {
		case e.msgs <- proxy.Message{Origin: f.Origin, Data: f.Data}:
		case <-e.ctx.Done():
			return
		}
	}
}
