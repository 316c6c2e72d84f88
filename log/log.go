// Package log is the engine's asynchronous logger. Call sites format an
// event and hand it to a buffered channel; a background goroutine renders
// it through logrus, so hot proxy paths never block on log I/O.
package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	level = INFO
	logCh = make(chan Event, 1024)
)

func init() {
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.DebugLevel)
	go drain()
}

// Event is one formatted log record awaiting output.
type Event struct {
	LogLevel LogLevel
	Payload  string
}

func (e Event) Type() string {
	return e.LogLevel.String()
}

func Infoln(format string, v ...any) {
	emit(Event{LogLevel: INFO, Payload: fmt.Sprintf(format, v...)})
}

func Warnln(format string, v ...any) {
	emit(Event{LogLevel: WARNING, Payload: fmt.Sprintf(format, v...)})
}

func Errorln(format string, v ...any) {
	emit(Event{LogLevel: ERROR, Payload: fmt.Sprintf(format, v...)})
}

func Debugln(format string, v ...any) {
	emit(Event{LogLevel: DEBUG, Payload: fmt.Sprintf(format, v...)})
}

// Fatalln prints synchronously and exits.
func Fatalln(format string, v ...any) {
	logrus.Fatalf(format, v...)
}

func SetLevel(newLevel LogLevel) {
	level = newLevel
}

func Level() LogLevel {
	return level
}

func emit(e Event) {
	if e.LogLevel < level {
		return
	}
	select {
	case logCh <- e:
	default:
		// Buffer full: degrade to synchronous output rather than drop.
		print(e)
	}
}

func drain() {
	for e := range logCh {
		print(e)
	}
}

func print(e Event) {
	switch e.LogLevel {
	case INFO:
		logrus.Infoln(e.Payload)
	case WARNING:
		logrus.Warnln(e.Payload)
	case ERROR:
		logrus.Errorln(e.Payload)
	case DEBUG:
		logrus.Debugln(e.Payload)
	}
}
