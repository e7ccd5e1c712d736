package redischan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// فیلدهای قرارداد سیمی سمت پاسخ‌دهنده
const (
	fieldToken  = "callback"
	fieldPath   = "path"
	fieldMethod = "method"
)

// Ctx دادهٔ یک تماس دریافتی در سمت پاسخ‌دهنده است.
type Ctx struct {
	ctx    context.Context
	r      *Responder
	caller string // origin تماس‌گیرنده، مقصد پاسخ
	token  string
	fields map[string]any

	headers map[string]any
}

func (c *Ctx) Ctx() context.Context { return c.ctx }
func (c *Ctx) Path() string {
	p, _ := c.fields[fieldPath].(string)
	return p
}

// Param یک فیلد دلخواه درخواست را برمی‌گرداند
func (c *Ctx) Param(name string) any { return c.fields[name] }

// Bind فیلدهای درخواست را داخل ساختار v دیکد می‌کند
func (c *Ctx) Bind(v any) error {
	b, err := json.Marshal(c.fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// SetHeader هدر پاسخ نهایی را اضافه می‌کند
func (c *Ctx) SetHeader(name string, value any) {
	if c.headers == nil {
		c.headers = make(map[string]any)
	}
	c.headers[name] = value
}

// Progress یک فریم پیشرفت خارج از نوبت برای همین تماس می‌فرستد.
// فریم‌های پیشرفت همیشه قبل از پاسخ نهایی معنا دارند.
func (c *Ctx) Progress(loaded, total int64, upload bool) {
	marker := "download"
	if upload {
		marker = "upload"
	}
	b, _ := json.Marshal(map[string]any{
		"callbackId": c.token,
		marker:       true,
		"loaded":     loaded,
		"total":      total,
	})
	c.r.post(c.ctx, c.caller, b)
}

// HandlerFunc بدنه و status پاسخ را برمی‌گرداند؛ خطا یعنی پاسخ 500.
type HandlerFunc func(c *Ctx) (body any, status int, err error)

// Responder نقش endpoint راه دور را بازی می‌کند: تماس‌ها را با کلید
// "METHOD path" مسیریابی می‌کند و پاسخ را به شکل دنبالهٔ
// [body, status, headers, token] برمی‌گرداند.
type Responder struct {
	rdb      *redis.Client
	origin   string
	logger   *zap.Logger
	chanSize int

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	sem chan struct{} // سقف همزمانی هندلرها
	wg  sync.WaitGroup
}

type ResponderOption func(*Responder)

func ResponderWithLogger(l *zap.Logger) ResponderOption {
	return func(r *Responder) {
		if l != nil {
			r.logger = l
		}
	}
}

func ResponderWithMaxJobs(n int) ResponderOption {
	return func(r *Responder) {
		if n > 0 {
			r.sem = make(chan struct{}, n)
		}
	}
}

func NewResponder(client *redis.Client, origin string, options ...ResponderOption) *Responder {
	r := &Responder{
		rdb:      client,
		origin:   origin,
		logger:   zap.NewNop(),
		chanSize: 1024,
		handlers: make(map[string]HandlerFunc),
		sem:      make(chan struct{}, 10),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Handle ثبت هندلر برای متد و مسیر مشخص
func (r *Responder) Handle(method, path string, h HandlerFunc) {
	r.mu.Lock()
	r.handlers[method+" "+path] = h
	r.mu.Unlock()
}

// Run بلوکه می‌ماند تا ctx لغو شود.
func (r *Responder) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, channelFor(r.origin))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", channelFor(r.origin), err)
	}
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(r.chanSize))
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return nil
		case msg, ok := <-ch:
			if !ok {
				r.wg.Wait()
				return nil
			}
			r.route(ctx, msg)
		}
	}
}

func (r *Responder) route(ctx context.Context, msg *redis.Message) {
	var f frame
	if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
		r.logger.Debug("undecodable frame dropped", zap.Error(err))
		return
	}
	if f.Control == controlInstall {
		// تماس‌گیرنده تازه بالا آمده؛ اعلام آمادگی
		r.post(ctx, f.Origin, nil)
		return
	}
	if f.Control != "" {
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(f.Data, &fields); err != nil {
		r.logger.Debug("undecodable call dropped", zap.Error(err))
		return
	}
	token, _ := fields[fieldToken].(string)
	if token == "" {
		return
	}

	r.sem <- struct{}{}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()
		r.serve(ctx, f.Origin, token, fields)
	}()
}

func (r *Responder) serve(ctx context.Context, caller, token string, fields map[string]any) {
	method, _ := fields[fieldMethod].(string)
	path, _ := fields[fieldPath].(string)

	r.mu.RLock()
	h := r.handlers[method+" "+path]
	r.mu.RUnlock()

	c := &Ctx{ctx: ctx, r: r, caller: caller, token: token, fields: fields}

	var body any
	var status int
	if h == nil {
		body = map[string]any{"error": "unknown_path", "message": "no handler for " + method + " " + path}
		status = 404
	} else {
		var err error
		body, status, err = h(c)
		if err != nil {
			r.logger.Warn("handler failed", zap.String("path", path), zap.Error(err))
			body = map[string]any{"error": "internal_server_error", "message": err.Error()}
			status = 500
		}
		if status == 0 {
			status = 200
		}
	}

	reply, err := json.Marshal([]any{body, status, c.headers, token})
	if err != nil {
		r.logger.Warn("unencodable reply dropped", zap.Error(err))
		return
	}
	r.reply(ctx, caller, reply)
}

// post فریم کنترلی/پیشرفت می‌فرستد؛ data خالی یعنی فریم ready
func (r *Responder) post(ctx context.Context, caller string, data []byte) {
	f := frame{Origin: r.origin, Data: data}
	if data == nil {
		f.Control = controlReady
	}
	if err := r.rdb.Publish(ctx, channelFor(caller), encodeFrame(f)).Err(); err != nil {
		r.logger.Debug("publish failed", zap.Error(err))
	}
}

func (r *Responder) reply(ctx context.Context, caller string, data []byte) {
	r.post(ctx, caller, data)
}
