package logging

import "github.com/rs/zerolog"

// DispatcherLogger writes dispatcher key/value pairs as zerolog fields.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, kv ...any) { l.emit(l.logger.Debug(), msg, kv) }
func (l *DispatcherLogger) Info(msg string, kv ...any)  { l.emit(l.logger.Info(), msg, kv) }
func (l *DispatcherLogger) Warn(msg string, kv ...any)  { l.emit(l.logger.Warn(), msg, kv) }
func (l *DispatcherLogger) Error(msg string, kv ...any) { l.emit(l.logger.Error(), msg, kv) }

// emit tolerates a nil event, which zerolog returns for filtered levels.
func (l *DispatcherLogger) emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
