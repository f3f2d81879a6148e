// Package logging configures the process-wide logrus instance used by
// every JADE entrypoint.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Configure sets up the standard JADE log format: full timestamps, forced
// colors (JADE runs are almost always inspected by tailing a log file in a
// terminal), written to stdout. verbose raises the level to Debug.
func Configure(verbose bool) {
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	logrus.SetOutput(os.Stdout)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// ConfigureFile additionally tees logging to the named file, such as
// submit_jobs.log or run_jobs.log in the run's output directory.
func ConfigureFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}
