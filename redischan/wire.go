// Package redischan یک کانال یک‌طرفهٔ origin-محور روی Redis Pub/Sub است:
// هر طرف روی "proxy:<origin>" خودش گوش می‌دهد و روی کانال طرف مقابل
// PUBLISH می‌کند. تحویل fire-and-forget است؛ نه ترتیب تضمین می‌شود نه رسیدن.
package redischan

import (
	"encoding/json"
	"strings"
)

const channelPrefix = "proxy:"

const (
	controlInstall = "install" // اعلان نصب سمت تماس‌گیرنده (معادل لودشدن endpoint)
	controlReady   = "ready"   // اعلان آمادگی سمت پاسخ‌دهنده
)

// frame پاکت سیمی بین دو طرف است.
type frame struct {
	Origin  string          `json:"origin"`
	Control string          `json:"control,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(f frame) []byte {
	b, _ := json.Marshal(f)
	return b
}

// originFromURL پاره‌های مسیر و fragment را از URL endpoint می‌اندازد
func originFromURL(u string) string {
	if i := strings.Index(u, "#"); i >= 0 {
		u = u[:i]
	}
	// بعد از scheme://host دیگر مسیر نمی‌خواهیم
	rest := u
	if i := strings.Index(u, "://"); i >= 0 {
		rest = u[i+3:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		u = u[:len(u)-len(rest)+i]
	}
	return u
}

func channelFor(origin string) string {
	return channelPrefix + origin
}
