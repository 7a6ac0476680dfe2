package cassandra

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// driverLogger forwards gocql log lines to zerolog.
type driverLogger struct {
	logger zerolog.Logger
}

func (l driverLogger) Print(v ...interface{}) {
	l.write(fmt.Sprint(v...))
}

func (l driverLogger) Printf(format string, v ...interface{}) {
	l.write(fmt.Sprintf(format, v...))
}

func (l driverLogger) Println(v ...interface{}) {
	l.write(fmt.Sprintln(v...))
}

func (l driverLogger) write(msg string) {
	l.logger.Debug().Str("component", "gocql").Msg(strings.TrimRight(msg, "\n"))
}
