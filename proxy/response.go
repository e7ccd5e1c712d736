package proxy

import "encoding/json"

// Response پاسخ نهایی موفق یک تماس است.
type Response struct {
	Status  int            // صفر یعنی طرف مقابل کدی نفرستاده
	Headers map[string]any // اگر باشند، روی Body هم زیر _headers سنجاق شده‌اند
	Body    any
}

// Bind بدنه را داخل ساختار v دیکد می‌کند
func (r *Response) Bind(v any) error {
	b, err := json.Marshal(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
