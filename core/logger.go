package core

// Logger reports to stdout and to the error tracker.
// args may hold an error, a map[string]interface{} of extras or a Person to attach to the report.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who a log entry is about.
type Person struct {
	ID    string
	Name  string
	Email string
}
