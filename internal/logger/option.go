package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// leveledCore filters entries by its own level instead of the wrapped core's.
// This lets a single command log below or above the global level.
type leveledCore struct {
	zapcore.Core

	// level decides which entries are written.
	level zapcore.Level
}

func (c *leveledCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

//nolint:ireturn,nolintlint // zapcore.Core is the interface zap expects back.
func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{Core: c.Core.With(fields), level: c.level}
}

// WithLevel returns an option that makes a derived logger write entries at
// lvl and above, regardless of the global level. alarm-ctl uses it to apply
// the configured log_level to its own context logger.
//
//nolint:ireturn,nolintlint // zap.Option is the interface zap expects back.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &leveledCore{Core: core, level: lvl}
	})
}
