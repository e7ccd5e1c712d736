package proxy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed برای تماس‌هایی که موقع Close هنوز معلق بودند
	ErrClosed = errors.New("proxycall: session closed")

	// ErrBinaryUnsupported: کانال نمی‌تواند پیوست باینری را مستقیم حمل کند.
	// ترنسپورت می‌تواند این را از Post برگرداند تا مسیر جایگزین فعال شود.
	ErrBinaryUnsupported = errors.New("proxycall: channel cannot carry binary attachments")
)

func isBinaryUnsupported(err error) bool {
	return errors.Is(err, ErrBinaryUnsupported)
}

// Error خطای ساختیافتهٔ یک پاسخ غیر 2xx است.
// فیلدهای شناخته‌شده ثابت‌اند؛ بقیهٔ فیلدهای بدنهٔ پاسخ داخل Meta کپی می‌شوند.
type Error struct {
	Name    string         // نام مشتق از فیلد error بدنه، مثل InvalidInputError
	Message string         // فیلد message بدنه (اگر باشد)
	Status  int            // status code عددی پاسخ
	Meta    map[string]any // بقیهٔ فیلدهای بدنه، بدون تغییر
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("proxycall: %s (status %d): %s", e.Name, e.Status, e.Message)
	}
	return fmt.Sprintf("proxycall: %s (status %d)", e.Name, e.Status)
}

// newReplyError بدنهٔ پاسخ را به خطای ساختیافته تبدیل می‌کند (کپی پویا)
func newReplyError(status int, body any) *Error {
	e := &Error{Name: "UnknownError", Status: status}
	fields, _ := body.(map[string]any)
	for k, v := range fields {
		switch k {
		case "error":
			if s, ok := v.(string); ok && s != "" {
				e.Name = deriveErrorName(s)
			}
			e.setMeta(k, v)
		case "message":
			if s, ok := v.(string); ok {
				e.Message = s
			} else {
				e.setMeta(k, v)
			}
		default:
			e.setMeta(k, v)
		}
	}
	return e
}

func (e *Error) setMeta(k string, v any) {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[k] = v
}

// deriveErrorName: "invalid_input" → "InvalidInputError"
func deriveErrorName(code string) string {
	var b strings.Builder
	for _, part := range strings.Split(code, "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		b.WriteString(strings.ToUpper(string(r[0])))
		b.WriteString(string(r[1:]))
	}
	if b.Len() == 0 {
		return "UnknownError"
	}
	b.WriteString("Error")
	return b.String()
}
