package logflags

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is what the decoders and the command line driver log through.
// Decoders never return recoverable anomalies as errors, they report them
// here: Errorf when a whole table is lost, Warnf when part of it is, Infof
// and Debugf for heuristics and progress.
type Logger interface {
	// WithField returns a new Logger enriched with the given field.
	WithField(key string, value interface{}) Logger
	// WithFields returns a new Logger enriched with the given fields.
	WithFields(fields Fields) Logger
	// WithError returns a new Logger enriched with the given error.
	WithError(err error) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// LoggerFactory creates the loggers returned by NELogger, ResourcesLogger,
// ImportsLogger and CLILogger. out is nil unless --log-dest was used.
type LoggerFactory func(level logrus.Level, fields Fields, out io.Writer) Logger

var loggerFactory LoggerFactory

// SetLoggerFactory replaces the logrus based default. Passing nil restores
// it.
func SetLoggerFactory(lf LoggerFactory) {
	loggerFactory = lf
}

// WrapEntry returns a Logger backed by entry. Programs embedding the
// decoder use it to route a File's anomalies to their own logrus logger,
// or to a test hook.
func WrapEntry(entry *logrus.Entry) Logger {
	return &logrusLogger{entry}
}

// Fields are the structured fields attached to every line of a Logger.
type Fields map[string]interface{}

type logrusLogger struct {
	*logrus.Entry
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{l.Entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{l.Entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{l.Entry.WithError(err)}
}
