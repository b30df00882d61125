package logging

import "go.uber.org/zap"

// Zap adapts a *zap.SugaredLogger to the Logger interface.
type Zap struct {
	s *zap.SugaredLogger
}

// NewZap wraps a zap logger. A nil logger is replaced with zap.NewNop().
func NewZap(l *zap.Logger) Zap {
	if l == nil {
		l = zap.NewNop()
	}
	return Zap{s: l.Sugar()}
}

func (z Zap) Debug(msg string, kv ...any) { z.s.Debugw(msg, kv...) }
func (z Zap) Info(msg string, kv ...any)  { z.s.Infow(msg, kv...) }
func (z Zap) Warn(msg string, kv ...any)  { z.s.Warnw(msg, kv...) }
func (z Zap) Error(msg string, kv ...any) { z.s.Errorw(msg, kv...) }
