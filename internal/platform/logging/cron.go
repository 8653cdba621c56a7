package logging

// CronLogger adapts Logger to the robfig/cron logger interface.
type CronLogger struct {
	logger *Logger
}

func NewCronLogger(logger *Logger) CronLogger {
	if logger == nil {
		logger = Default()
	}
	return CronLogger{logger: logger.With("component", "cron")}
}

// Info is emitted for every schedule tick, so it is kept at debug level.
func (c CronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"error", err}, keysAndValues...)
	c.logger.Error(msg, args...)
}
