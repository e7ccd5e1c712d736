package proxy

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testRemote = "https://remote.example"
	testCaller = "https://caller.example"
)

// fakeEndpoint یک کانال حلقه-بسته برای تست‌هاست: ارسال‌ها را ضبط می‌کند و
// پیام‌های دریافتی با دست تزریق می‌شوند.
type fakeEndpoint struct {
	mu      sync.Mutex
	posts   []map[string]any
	errOnce error // فقط برای اولین Post بعدی
	errAll  error
	binary  bool

	msgs      chan Message
	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		msgs:  make(chan Message, 64),
		ready: make(chan struct{}),
	}
}

func (f *fakeEndpoint) Post(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOnce != nil {
		err := f.errOnce
		f.errOnce = nil
		return err
	}
	if f.errAll != nil {
		return f.errAll
	}
	f.posts = append(f.posts, payload.(map[string]any))
	return nil
}

func (f *fakeEndpoint) AcceptsBinary() bool      { return f.binary }
func (f *fakeEndpoint) Messages() <-chan Message { return f.msgs }
func (f *fakeEndpoint) Ready() <-chan struct{}   { return f.ready }

func (f *fakeEndpoint) Close() error {
	f.closeOnce.Do(func() { close(f.msgs) })
	return nil
}

func (f *fakeEndpoint) signalReady() {
	f.readyOnce.Do(func() { close(f.ready) })
}

// inject یک پیام دریافتی شبیه‌سازی می‌کند
func (f *fakeEndpoint) inject(t *testing.T, origin string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f.msgs <- Message{Origin: origin, Data: data}
}

func (f *fakeEndpoint) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakeEndpoint) post(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[i]
}

type fakeBootstrap struct {
	ep       *fakeEndpoint
	err      error
	errOnce  error // فقط برای اولین نصب
	installs atomic.Int32
	gotURL   string
}

func (b *fakeBootstrap) Install(_ context.Context, endpointURL, _ string) (Endpoint, error) {
	b.installs.Add(1)
	b.gotURL = endpointURL
	if b.errOnce != nil {
		err := b.errOnce
		b.errOnce = nil
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.ep, nil
}

// seqTokens توکن قطعی tok-1, tok-2, ... برای تست‌ها
func seqTokens() func() string {
	var n atomic.Uint64
	return func() string {
		return "tok-" + strconv.FormatUint(n.Add(1), 10)
	}
}

func newTestSession(t *testing.T, ep *fakeEndpoint) *Session {
	t.Helper()
	s := New(&fakeBootstrap{ep: ep}, testRemote, testCaller,
		WithTokenGenerator(seqTokens()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// waitSettled منتظر تسویهٔ تماس می‌ماند
func waitSettled(t *testing.T, c *Call) (*Response, error) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("call never settled")
	}
	return c.Result()
}
