package core

// Logger is any service that can log app events by level.
// Extra args are attached to the event as-is; implementations may special-case
// some types (errors, logged-in users) for richer reports.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
