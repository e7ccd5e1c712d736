package proxy

import (
	"encoding/json"

	"go.uber.org/zap"
)

// dispatch دملتی‌پلکس پیام‌های دریافتی کانال. هر پیام بدشکل، خارجی یا
// بی‌صاحب بی‌صدا دور ریخته می‌شود؛ این مسیر هیچ‌وقت خطا تولید نمی‌کند.
func (s *Session) dispatch(msg Message) {
	// تنها مرز احراز: تطبیق دقیق origin اعلام‌شده
	if msg.Origin != s.remoteOrigin {
		s.logger.Debug("message from unexpected origin dropped",
			zap.String("origin", msg.Origin))
		return
	}

	var payload any
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		s.logger.Debug("undecodable message dropped", zap.Error(err))
		return
	}

	if obj, ok := payload.(map[string]any); ok {
		// نشانگر باید صریحاً true باشد؛ "download": false فریم پیشرفت نیست
		up, _ := obj[markerUpload].(bool)
		down, _ := obj[markerDownload].(bool)
		if up || down {
			s.dispatchProgress(obj, up)
		}
		// شیء بدون نشانگر پیشرفت: شکل نامنتظره، نادیده
		return
	}

	// پاسخ نهایی: دنبالهٔ مرتب که عنصر آخرش توکن تطبیق است
	seq, ok := payload.([]any)
	if !ok || len(seq) == 0 {
		return
	}
	last := len(seq) - 1
	token, ok := seq[last].(string)
	if !ok || token == "" {
		return
	}

	var body any
	var status int
	var headers map[string]any
	if last >= 1 {
		body = seq[0]
	}
	if last >= 2 {
		if f, ok := seq[1].(float64); ok {
			status = int(f)
		}
	}
	if last >= 3 {
		headers, _ = seq[2].(map[string]any)
	}
	s.reg.resolve(token, body, status, headers)
}

// dispatchProgress فریم پیشرفت را به تماس مربوطه می‌رساند؛ تماس در رجیستری
// می‌ماند چون پاسخ نهایی هنوز نیامده. شناسهٔ ناشناخته نادیده گرفته می‌شود.
func (s *Session) dispatchProgress(obj map[string]any, upload bool) {
	token, _ := obj[fieldCallbackID].(string)
	if token == "" {
		return
	}
	c, ok := s.reg.peek(token)
	if !ok {
		return
	}
	p := Progress{Upload: upload}
	if f, ok := obj[fieldLoaded].(float64); ok {
		p.Loaded = int64(f)
	}
	if f, ok := obj[fieldTotal].(float64); ok {
		p.Total = int64(f)
	}
	c.progress(p)
}
