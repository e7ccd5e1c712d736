package proxy

import "strings"

// FormField یک جفت (نام، مقدار) از multipart form data است.
// مقدار یا رشته است، یا File، یا بعد از جایگزینی *InlineFile.
type FormField struct {
	Name  string
	Value any
}

// Request پارامترهای یک تماس است.
type Request struct {
	Path     string
	Method   string         // پیش‌فرض GET؛ همیشه بزرگ می‌شود
	Extra    map[string]any // فیلدهای دلخواه دیگر (query, body, apiVersion, ...)
	FormData []FormField
}

// normalized یک کپی با متد نرمال برمی‌گرداند؛ ورودی کاربر دست نمی‌خورد.
func (r *Request) normalized() *Request {
	n := &Request{
		Path:   r.Path,
		Method: strings.ToUpper(strings.TrimSpace(r.Method)),
	}
	if n.Method == "" {
		n.Method = "GET"
	}
	if len(r.Extra) > 0 {
		n.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			n.Extra[k] = v
		}
	}
	if len(r.FormData) > 0 {
		n.FormData = append([]FormField(nil), r.FormData...)
	}
	return n
}

func (r *Request) hasFiles() bool {
	for _, f := range r.FormData {
		if _, ok := f.Value.(File); ok {
			return true
		}
	}
	return false
}

// payload شکل سیمی درخواست را می‌سازد؛ فیلدهای رزروشده روی Extra اولویت دارند.
func (r *Request) payload(token string) map[string]any {
	m := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		m[k] = v
	}
	m[fieldPath] = r.Path
	m[fieldMethod] = r.Method
	m[fieldToken] = token
	m[fieldSupportsArgs] = true
	m[fieldSupportsProgress] = true
	if len(r.FormData) > 0 {
		pairs := make([][2]any, len(r.FormData))
		for i, f := range r.FormData {
			pairs[i] = [2]any{f.Name, f.Value}
		}
		m[fieldFormData] = pairs
	}
	return m
}
