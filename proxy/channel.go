package proxy

import (
	"bytes"
	"context"
	"io"
)

// Message یک پیام دریافتی از کانال است: مبدا اعلام‌شده + دادهٔ خام
type Message struct {
	Origin string
	Data   []byte
}

// Endpoint سمت محلیِ کانال یک‌طرفه به مقصد راه دور است.
// Post ارسال fire-and-forget است؛ Ready فقط یک‌بار و برای همیشه بسته می‌شود؛
// بسته‌شدن Messages یعنی پایان عمر کانال.
type Endpoint interface {
	Post(payload any) error
	Messages() <-chan Message
	Ready() <-chan struct{}
	Close() error
}

// BinaryCarrier را ترنسپورت‌هایی پیاده می‌کنند که تکلیف حمل پیوست باینری را
// صریح اعلام می‌کنند. نبود این اینترفیس یعنی «نمی‌تواند».
type BinaryCarrier interface {
	AcceptsBinary() bool
}

// Bootstrap ساخت endpoint راه دور را به عهده دارد (خارج از این هسته).
type Bootstrap interface {
	Install(ctx context.Context, endpointURL, callerOrigin string) (Endpoint, error)
}

// File یک پیوست باینری داخل form data است؛ خواندن کامل آن async انجام می‌شود.
type File interface {
	Name() string
	ContentType() string
	Open() (io.ReadCloser, error)
}

// InlineFile جایگزین سریالایز‌شدهٔ یک File روی مسیر جایگزین است.
type InlineFile struct {
	FileName     string `json:"fileName"`
	MimeType     string `json:"mimeType"`
	FileContents []byte `json:"fileContents"`
}

// BytesFile ساد‌ه‌ترین پیاده‌سازی File از روی بایت‌های در حافظه.
type BytesFile struct {
	FileName string
	MimeType string
	Data     []byte
}

func (f *BytesFile) Name() string        { return f.FileName }
func (f *BytesFile) ContentType() string { return f.MimeType }
func (f *BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}
