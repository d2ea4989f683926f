package logger

import (
	"time"

	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"
)

type gormWriter struct {
	store string
}

func (w gormWriter) Printf(format string, args ...any) {
	log.Warn().Str("component", "gorm").Str("store", w.store).Msgf(format, args...)
}

// NewGormLogger bridges gorm's logger onto zerolog, reporting slow queries and errors only.
func NewGormLogger(store string) gormlogger.Interface {
	return gormlogger.New(gormWriter{store: store}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
