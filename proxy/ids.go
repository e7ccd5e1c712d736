package proxy

import "github.com/google/uuid"

// defaultToken ژنراتور پیش‌فرض توکن تطبیق است؛ با WithTokenGenerator عوض می‌شود.
func defaultToken() string {
	return uuid.NewString()
}
