// Package logging sets up the process-wide logrus logger the way the
// teacher's mempool package consumes it: a prefixed, component-scoped
// entry obtained via For(component), writing a human-readable,
// optionally-colored line to stdout and a rotated file on disk.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

var root = logrus.New()

// Init configures the root logger. logFile may be empty to disable file
// rotation (useful in tests). level is a logrus level name
// ("trace","debug","info","warn","error").
func Init(logFile string, level string) {
	formatter := &prefixed.TextFormatter{
		ForceFormatting: true,
		FullTimestamp:   true,
	}

	var out io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = colorable.NewColorableStdout()
		formatter.ForceColors = true
	}

	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, rotating)
	}

	root.SetOutput(out)
	root.SetFormatter(formatter)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	root.SetLevel(lvl)
}

// For returns a component-scoped logger, mirroring the teacher's
// `log = logger.WithFields(logger.Fields{"prefix": "mempool"})` idiom.
func For(component string) *logrus.Entry {
	return root.WithFields(logrus.Fields{"prefix": component})
}

// ForNetwork scopes a component logger further by network, since every
// supervisor task owns its own cursor and should be traceable in logs
// independent of its sibling network (spec.md §5).
func ForNetwork(component, network string) *logrus.Entry {
	return root.WithFields(logrus.Fields{"prefix": component, "network": network})
}
