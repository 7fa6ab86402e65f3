package logger

// Backend is implemented by logging sinks the facade dispatches to.
type Backend interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

var active Backend

// Init installs the process-wide logging backend. Calling any of the
// package-level functions before Init is a no-op, so library code can log
// unconditionally.
func Init(backend Backend) {
	active = backend
}

// Debug writes a message at DEBUG level.
func Debug(message string, keyvals ...any) {
	if active == nil {
		return
	}
	active.Debug(message, keyvals...)
}

// Info writes a message at INFO level.
func Info(message string, keyvals ...any) {
	if active == nil {
		return
	}
	active.Info(message, keyvals...)
}

// Warn writes a message at WARN level.
func Warn(message string, keyvals ...any) {
	if active == nil {
		return
	}
	active.Warn(message, keyvals...)
}

// Error writes a message at ERROR level.
func Error(message string, keyvals ...any) {
	if active == nil {
		return
	}
	active.Error(message, keyvals...)
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	if active == nil {
		return
	}
	active.Fatal(message, keyvals...)
}
