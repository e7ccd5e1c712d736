package proxy

import "sync"

// Callback نتیجهٔ نهایی تماس؛ حداکثر یک‌بار صدا زده می‌شود.
type Callback func(res *Response, err error)

// Progress وضعیت انتقال جزئی یک تماس در جریان است.
type Progress struct {
	Loaded int64
	Total  int64
	Upload bool
}

type ProgressFunc func(p Progress)

// Call هندل یک تماس در جریان است. همین شیء داخل رجیستری نگه داشته می‌شود،
// پس شنونده‌ها و dispatch روی یک هویت مشترک کار می‌کنند.
type Call struct {
	token string

	mu      sync.Mutex
	loadFns []func(*Response)
	errFns  []func(error)
	upFns   []ProgressFunc
	downFns []ProgressFunc

	settled bool
	done    chan struct{}
	res     *Response
	err     error
}

func newCall(token string) *Call {
	return &Call{token: token, done: make(chan struct{})}
}

// Token شناسهٔ تطبیق این تماس
func (c *Call) Token() string { return c.token }

func (c *Call) OnLoad(fn func(*Response)) *Call {
	c.mu.Lock()
	c.loadFns = append(c.loadFns, fn)
	c.mu.Unlock()
	return c
}

func (c *Call) OnError(fn func(error)) *Call {
	c.mu.Lock()
	c.errFns = append(c.errFns, fn)
	c.mu.Unlock()
	return c
}

func (c *Call) OnUploadProgress(fn ProgressFunc) *Call {
	c.mu.Lock()
	c.upFns = append(c.upFns, fn)
	c.mu.Unlock()
	return c
}

func (c *Call) OnDownloadProgress(fn ProgressFunc) *Call {
	c.mu.Lock()
	c.downFns = append(c.downFns, fn)
	c.mu.Unlock()
	return c
}

// Done بعد از اولین resolve/reject بسته می‌شود.
func (c *Call) Done() <-chan struct{} { return c.done }

// Result بعد از Done معتبر است.
func (c *Call) Result() (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res, c.err
}

// resolve/reject: فقط اولین تسویه اثر دارد؛ بقیه no-op هستند.
func (c *Call) resolve(res *Response) { c.settle(res, nil) }
func (c *Call) reject(err error)      { c.settle(nil, err) }

func (c *Call) settle(res *Response, err error) {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return
	}
	c.settled = true
	c.res, c.err = res, err
	loads := c.loadFns
	errs := c.errFns
	c.mu.Unlock()
	close(c.done)
	// صدازدن بیرون از قفل؛ callback ممکن است دوباره وارد Session یا همین Call شود
	if err != nil {
		for _, fn := range errs {
			fn(err)
		}
		return
	}
	for _, fn := range loads {
		fn(res)
	}
}

func (c *Call) progress(p Progress) {
	c.mu.Lock()
	fns := c.downFns
	if p.Upload {
		fns = c.upFns
	}
	fns = append([]ProgressFunc(nil), fns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}
