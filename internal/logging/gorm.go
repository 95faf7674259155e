package logging

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's SQL logging through zerolog.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger builds a gorm logger for the given level name
// (silent, error, warn, info).
func NewGormLogger(level string) *GormLogger {
	return &GormLogger{level: gormLevel(level), slowThreshold: time.Second}
}

func gormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent", "disabled":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		Ctx(ctx).Info().Msgf(msg, args...)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		Ctx(ctx).Warn().Msgf(msg, args...)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		Ctx(ctx).Error().Msgf(msg, args...)
	}
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var event *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		event = Ctx(ctx).Error().Err(err)
	case elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		event = Ctx(ctx).Warn().Bool("slow", true)
	case g.level >= gormlogger.Info:
		event = Ctx(ctx).Debug()
	default:
		return
	}

	sql, rows := fc()
	event.Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query")
}
