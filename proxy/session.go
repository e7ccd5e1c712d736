package proxy

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type state int

const (
	stateUninstalled state = iota // هنوز endpoint ساخته نشده
	stateInstalling               // در انتظار سیگنال آمادگی
	stateReady                    // برای همیشه آماده؛ مسیر برگشت ندارد
)

// Session تمام حالت سراسری پروتکل را یک‌جا نگه می‌دارد:
// رجیستری تطبیق، صف تماس‌های قبل از آمادگی، پرچم آمادگی و پرچم نقص باینری.
// یک‌بار در طول عمر پروسه ساخته می‌شود؛ Close تماس‌های معلق را reject می‌کند.
type Session struct {
	bootstrap    Bootstrap
	remoteOrigin string
	callerOrigin string

	logger   *zap.Logger
	newToken func() string

	mu           sync.Mutex
	state        state
	endpoint     Endpoint
	queue        []*pendingCall // فقط تا اولین آمادگی؛ بعدش nil می‌ماند
	closed       bool
	binaryDefect bool
	defectProbed bool

	reg    *registry
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type pendingCall struct {
	req  *Request
	call *Call
}

// New یک Session می‌سازد. remoteOrigin مقصد تماس‌ها و callerOrigin هویت
// محلی است که endpoint راه دور پاسخ‌ها را به آن می‌فرستد.
func New(bootstrap Bootstrap, remoteOrigin, callerOrigin string, options ...Option) *Session {
	s := &Session{
		bootstrap:    bootstrap,
		remoteOrigin: remoteOrigin,
		callerOrigin: callerOrigin,
		logger:       zap.NewNop(),
		newToken:     defaultToken,
	}
	for _, opt := range options {
		opt(s)
	}
	s.reg = newRegistry(s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// CallPath شکر برای تماس GET روی یک مسیر خالی
func (s *Session) CallPath(path string, cb Callback) *Call {
	return s.Call(&Request{Path: path}, cb)
}

// Call یک تماس جدید ثبت و ارسال می‌کند. قبل از هر تلاش برای ارسال، تماس در
// رجیستری می‌نشیند تا پاسخی که با برگشتِ همین متد مسابقه بدهد گم نشود.
// هندل برگشتی همان شیء داخل رجیستری است.
func (s *Session) Call(req *Request, cb Callback) *Call {
	r := req.normalized()
	c := newCall(s.newToken())
	if cb != nil {
		// پوشش یک‌بارمصرف: موفق یا ناموفق، فقط اولین تسویه به cb می‌رسد
		c.OnLoad(func(res *Response) { cb(res, nil) })
		c.OnError(func(err error) { cb(nil, err) })
	}
	s.reg.add(c)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.fail(c, ErrClosed)
		return c
	}
	switch s.state {
	case stateUninstalled:
		s.queue = append(s.queue, &pendingCall{req: r, call: c})
		s.state = stateInstalling
		s.mu.Unlock()
		s.install()
	case stateInstalling:
		s.queue = append(s.queue, &pendingCall{req: r, call: c})
		s.mu.Unlock()
	default:
		ep := s.endpoint
		s.mu.Unlock()
		s.submit(ep, r, c)
	}
	return c
}

// Request نسخهٔ بلاک‌شونده است؛ هسته timeout ندارد، مهلت با ctx تماس‌گیرنده می‌آید.
func (s *Session) Request(ctx context.Context, req *Request) (*Response, error) {
	c := s.Call(req, nil)
	select {
	case <-c.Done():
		return c.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// install ساخت endpoint و اتصال شنوندهٔ واحد (یک‌بار در طول عمر پروسه)
func (s *Session) install() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		url := s.remoteOrigin + endpointPath + "#" + s.callerOrigin
		ep, err := s.bootstrap.Install(s.ctx, url, s.callerOrigin)
		if err != nil {
			s.logger.Error("endpoint install failed", zap.Error(err))
			s.failInstall(fmt.Errorf("install endpoint: %w", err))
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = ep.Close()
			return
		}
		s.endpoint = ep
		s.mu.Unlock()
		s.run(ep)
	}()
}

func (s *Session) run(ep Endpoint) {
	ready := ep.Ready()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ready:
			ready = nil // سیگنال آمادگی فقط یک‌بار مصرف می‌شود
			s.onReady(ep)
		case msg, ok := <-ep.Messages():
			if !ok {
				return
			}
			s.dispatch(msg)
		}
	}
}

// onReady گذار به ready و فلاش FIFO صف. رفرنس صف قبل از پیمایش جایگزین
// می‌شود تا callbackای که همزمان تماس جدید می‌زند صف کهنه را خراب نکند.
func (s *Session) onReady(ep Endpoint) {
	s.mu.Lock()
	if s.state == stateReady || s.closed {
		s.mu.Unlock()
		return
	}
	s.state = stateReady
	q := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.logger.Debug("endpoint ready, flushing queued calls", zap.Int("queued", len(q)))
	for _, p := range q {
		s.submit(ep, p.req, p.call)
	}
}

// fail تماس را از رجیستری برمی‌دارد و reject می‌کند (اگر هنوز آنجا باشد)
func (s *Session) fail(c *Call, err error) {
	if cc, ok := s.reg.take(c.token); ok {
		cc.reject(err)
	}
}

// failInstall نصب ناموفق: صف تا همین لحظه reject می‌شود و state به
// uninstalled برمی‌گردد تا اولین تماس بعدی دوباره نصب را امتحان کند.
// هر دو زیر یک قفل، تا تماسی که وسط کار می‌رسد نه گم شود نه معلق بماند.
func (s *Session) failInstall(err error) {
	s.mu.Lock()
	q := s.queue
	s.queue = nil
	if !s.closed {
		s.state = stateUninstalled
	}
	s.mu.Unlock()
	for _, p := range q {
		s.fail(p.call, err)
	}
}

// Close پایان صریح: همهٔ تماس‌های معلق و صف‌شده با ErrClosed بسته می‌شوند.
// Close تا خروج goroutine های داخلی بلوکه می‌ماند؛ از داخل callback یک تماس
// مستقیم صدایش نزنید (callbackها روی همان goroutine شنونده اجرا می‌شوند و
// انتظارِ Close به بن‌بست می‌رسد) — از داخل callback با goroutine جدا ببندید.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	ep := s.endpoint
	s.mu.Unlock()

	s.cancel()
	for _, c := range s.reg.drain() {
		c.reject(ErrClosed)
	}
	var err error
	if ep != nil {
		err = ep.Close()
	}
	s.wg.Wait()
	return err
}
