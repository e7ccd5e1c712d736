package proxy

import (
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// submit مسیر ارسال یک تماس ثبت‌شده است.
// مسیر مستقیم وقتی که کانال پیوست باینری را می‌پذیرد (یا پیوستی در کار
// نیست)؛ وگرنه مسیر جایگزین: خواندن کامل پیوست‌ها و جایگزینی درجا.
func (s *Session) submit(ep Endpoint, req *Request, c *Call) {
	if req.hasFiles() && !s.binaryOK(ep) {
		s.submitInline(ep, req, c)
		return
	}
	payload := req.payload(c.token)
	payload[fieldSuccess] = true
	if err := ep.Post(payload); err != nil {
		if req.hasFiles() && isBinaryUnsupported(err) {
			// کشف دیرهنگام نقص؛ یک‌بار ثبت می‌شود و دیگر تکرار نمی‌کنیم
			s.markBinaryDefect()
			s.submitInline(ep, req, c)
			return
		}
		// خطای نامربوط ترنسپورت: شکست گزارش‌شدهٔ همین تماس، نه panic
		s.fail(c, fmt.Errorf("post request: %w", err))
	}
}

// binaryOK یک‌بار برای همیشه ظرفیت کانال را می‌پرسد و نتیجه را کش می‌کند.
func (s *Session) binaryOK(ep Endpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.defectProbed {
		s.defectProbed = true
		bc, ok := ep.(BinaryCarrier)
		if !ok || !bc.AcceptsBinary() {
			s.binaryDefect = true
			s.logger.Debug("channel cannot carry binary attachments, inlining files")
		}
	}
	return !s.binaryDefect
}

func (s *Session) markBinaryDefect() {
	s.mu.Lock()
	s.defectProbed = true
	s.binaryDefect = true
	s.mu.Unlock()
}

// submitInline همهٔ پیوست‌ها را همزمان می‌خواند و بعد از آخرین خواندن
// دقیقاً یک‌بار ارسال می‌کند. اولین خطای خواندن همان لحظه تماس را می‌بندد و
// ارسال کلاً منتفی می‌شود؛ خواندن‌های هم‌گروه تا انتها می‌روند ولی تکمیل و
// خطای بعدیِ همان تماس بی‌اثر است.
func (s *Session) submitInline(ep Endpoint, req *Request, c *Call) {
	fields := append([]FormField(nil), req.FormData...)

	var g errgroup.Group
	for i := range fields {
		file, ok := fields[i].Value.(File)
		if !ok {
			continue
		}
		i, name := i, fields[i].Name
		g.Go(func() error {
			data, err := readFile(file)
			if err != nil {
				err = fmt.Errorf("read attachment %q: %w", name, err)
				// بدون انتظار برای بقیهٔ خواندن‌ها؛ تسویه یک‌بارمصرف است
				s.fail(c, err)
				return err
			}
			fields[i].Value = &InlineFile{
				FileName:     file.Name(),
				MimeType:     file.ContentType(),
				FileContents: data,
			}
			return nil
		})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := g.Wait(); err != nil {
			// تماس همان موقعِ خطا بسته شده؛ فقط ارسال را منتفی کن
			return
		}
		sub := *req
		sub.FormData = fields
		if err := ep.Post(sub.payload(c.token)); err != nil {
			s.fail(c, fmt.Errorf("post request: %w", err))
		}
	}()
}

func readFile(f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
