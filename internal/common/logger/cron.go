package logger

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CronLogger adapts zerolog to cron.Logger so job skips and panics land in the service log.
type CronLogger struct {
	log zerolog.Logger
}

var _ cron.Logger = CronLogger{}

func NewCronLogger(l zerolog.Logger) CronLogger {
	return CronLogger{log: l}
}

// Info is called by cron for routine events (schedule, wake, skip). Kept at debug level.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
