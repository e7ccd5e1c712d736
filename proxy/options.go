package proxy

import "go.uber.org/zap"

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTokenGenerator ژنراتور توکن تطبیق را عوض می‌کند (پیش‌فرض: uuid)
func WithTokenGenerator(fn func() string) Option {
	return func(s *Session) {
		if fn != nil {
			s.newToken = fn
		}
	}
}
