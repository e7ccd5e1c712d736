package test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mrjvadi/go-proxycall/proxy"
)

const (
	benchRemote = "https://remote.example"
	benchCaller = "https://caller.example"
)

// loopEndpoint یک کانال حلقه-بسته است: هر Post بلافاصله پاسخ موفق همان
// توکن را برمی‌گرداند. برای سنجش سربار خود هسته، بدون Redis.
type loopEndpoint struct {
	msgs  chan proxy.Message
	ready chan struct{}
}

func newLoopEndpoint() *loopEndpoint {
	ready := make(chan struct{})
	close(ready) // از همان اول آماده
	return &loopEndpoint{
		msgs:  make(chan proxy.Message, 1<<14),
		ready: ready,
	}
}

func (e *loopEndpoint) Post(payload any) error {
	m := payload.(map[string]any)
	token, _ := m["callback"].(string)
	reply, _ := json.Marshal([]any{map[string]any{"ok": true}, 200, nil, token})
	e.msgs <- proxy.Message{Origin: benchRemote, Data: reply}
	return nil
}

func (e *loopEndpoint) AcceptsBinary() bool            { return false }
func (e *loopEndpoint) Messages() <-chan proxy.Message { return e.msgs }
func (e *loopEndpoint) Ready() <-chan struct{}         { return e.ready }
func (e *loopEndpoint) Close() error                   { close(e.msgs); return nil }

type loopBootstrap struct{ ep *loopEndpoint }

func (b *loopBootstrap) Install(context.Context, string, string) (proxy.Endpoint, error) {
	return b.ep, nil
}

func newSessionForBench(b *testing.B) *proxy.Session {
	b.Helper()
	s := proxy.New(&loopBootstrap{ep: newLoopEndpoint()}, benchRemote, benchCaller)
	b.Cleanup(func() { _ = s.Close() })
	return s
}

// ------------------------------------------------------------
// Benchmark 1: Request – round-trip کامل روی کانال حلقه-بسته
// ------------------------------------------------------------
func BenchmarkRequest_RoundTrip(b *testing.B) {
	ctx := context.Background()
	s := newSessionForBench(b)

	// Warmup: نصب endpoint و فلاش صف
	if _, err := s.Request(ctx, &proxy.Request{Path: "/warmup"}); err != nil {
		b.Fatalf("warmup request failed: %v", err)
	}

	req := &proxy.Request{Path: "/me"}
	b.ReportAllocs()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := s.Request(ctx, req); err != nil {
				b.Fatalf("request failed: %v", err)
			}
		}
	})
	b.StopTimer()
}

// ------------------------------------------------------------
// Benchmark 2: Call – ارسال callback ای و انتظار تسویه
// ------------------------------------------------------------
func BenchmarkCall_Throughput(b *testing.B) {
	ctx := context.Background()
	s := newSessionForBench(b)

	if _, err := s.Request(ctx, &proxy.Request{Path: "/warmup"}); err != nil {
		b.Fatalf("warmup request failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := s.CallPath("/me", nil)
		select {
		case <-c.Done():
		case <-time.After(5 * time.Second):
			b.Fatal("call never settled")
		}
	}
	b.StopTimer()
}

// ------------------------------------------------------------
// Benchmark 3: آپلود با مسیر جایگزین (خواندن و جایگزینی پیوست)
// ------------------------------------------------------------
func BenchmarkInlineUpload(b *testing.B) {
	ctx := context.Background()
	s := newSessionForBench(b)

	if _, err := s.Request(ctx, &proxy.Request{Path: "/warmup"}); err != nil {
		b.Fatalf("warmup request failed: %v", err)
	}

	data := make([]byte, 64<<10)
	req := &proxy.Request{
		Path:   "/sites/1/media",
		Method: "POST",
		FormData: []proxy.FormField{
			{Name: "media[]", Value: &proxy.BytesFile{FileName: "a.bin", MimeType: "application/octet-stream", Data: data}},
		},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Request(ctx, req); err != nil {
			b.Fatalf("upload failed: %v", err)
		}
	}
	b.StopTimer()
}
