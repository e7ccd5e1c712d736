package proxy

import (
	"sync"

	"go.uber.org/zap"
)

// registry نگاشت توکن → تماس معلق است. حذف همیشه قبل از صدازدن callback
// انجام می‌شود تا تحویل at-most-once حتی با ورود دوبارهٔ callback برقرار بماند.
type registry struct {
	mu     sync.Mutex
	calls  map[string]*Call
	logger *zap.Logger
}

func newRegistry(logger *zap.Logger) *registry {
	return &registry{calls: make(map[string]*Call), logger: logger}
}

func (r *registry) add(c *Call) {
	r.mu.Lock()
	r.calls[c.token] = c
	r.mu.Unlock()
}

// take تماس را برمی‌دارد و حذف می‌کند (برای پاسخ نهایی)
func (r *registry) take(token string) (*Call, bool) {
	r.mu.Lock()
	c, ok := r.calls[token]
	if ok {
		delete(r.calls, token)
	}
	r.mu.Unlock()
	return c, ok
}

// peek بدون حذف (برای فریم‌های پیشرفت)
func (r *registry) peek(token string) (*Call, bool) {
	r.mu.Lock()
	c, ok := r.calls[token]
	r.mu.Unlock()
	return c, ok
}

func (r *registry) drain() []*Call {
	r.mu.Lock()
	out := make([]*Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c)
	}
	r.calls = make(map[string]*Call)
	r.mu.Unlock()
	return out
}

// resolve پاسخ نهایی را به تماس می‌رساند. توکن ناشناخته no-op است:
// تحویل تکراری، پیام دیرهنگام یا پیام خارجی هرگز خطا نمی‌شود.
func (r *registry) resolve(token string, body any, status int, headers map[string]any) {
	c, ok := r.take(token)
	if !ok {
		r.logger.Debug("reply for unknown token dropped", zap.String("token", token))
		return
	}
	if headers != nil {
		if m, ok := body.(map[string]any); ok {
			m[fieldHeaders] = headers
		}
	}
	// بدون status یا 2xx → موفق؛ هر کد دیگری (حتی 1xx/3xx) شکست است
	if status == 0 || (status >= 200 && status <= 299) {
		c.resolve(&Response{Status: status, Headers: headers, Body: body})
		return
	}
	c.reject(newReplyError(status, body))
}
