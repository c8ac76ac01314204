/*
Copyright The MySQL Operator Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package log

import (
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Flags holds the logging-related command line flags, following the same
// AddFlags/ConfigureLogging split used elsewhere in this operator's cobra
// commands.
type Flags struct {
	Level string
}

// AddFlags registers the logging flags on the given flag set.
func (f *Flags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&f.Level, "log-level", "info",
		"The minimum log level to emit: debug, info, warning or error.")
}

// ConfigureLogging rebuilds the root logger honoring the parsed flags. It
// should be called from a cobra PersistentPreRun, before any other command
// logic executes.
func (f *Flags) ConfigureLogging() {
	level := parseLevel(f.Level)

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := cfg.Build()
	if err != nil {
		return
	}

	root = Logger{sink: zapr.NewLogger(zl)}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warning", "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
