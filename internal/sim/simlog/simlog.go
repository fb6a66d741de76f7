// Package simlog wires up the logrus logger shared across the simulator,
// dispatcher, and config packages, so every component logs through one
// configured sink instead of each owning its own.
package simlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a text-formatted logger writing to stderr, matching the
// plain, timestamped output the rest of the pack's services
// (runZeroInc-sockstats, joeycumines-go-utilpkg's ilogrus) configure
// logrus with.
func New(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}
