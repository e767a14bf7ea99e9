package flashprog

import (
	"context"
	"log/slog"
	"os"
)

// Log levels, spec.md §9: "expose a structured logger with levels
// {Error, Warn, Info, Debug, Debug2, Spew}". slog only has four built-in
// levels, so Debug2 and Spew are modeled as custom levels below the
// standard Debug level, matching flashrom's own msg_cdbg2/msg_cspew split.
const (
	LevelSpew  = slog.Level(-12)
	LevelDebug2 = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var levelNames = map[slog.Leveler]string{
	LevelSpew:   "SPEW",
	LevelDebug2: "DEBUG2",
}

// Logger is the package-wide structured logger. Callers may replace it
// (e.g. to redirect to --output logfile per spec.md §6) with SetLogger.
var Logger = newDefaultLogger()

func newDefaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: LevelSpew,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
				}
			}
			return a
		},
	})
	return slog.New(h)
}

// SetLogger redirects package logging output, e.g. to the --output logfile.
func SetLogger(l *slog.Logger) { Logger = l }

func logSpew(msg string, args ...any)   { Logger.Log(context.Background(), LevelSpew, msg, args...) }
func logDebug2(msg string, args ...any) { Logger.Log(context.Background(), LevelDebug2, msg, args...) }
func logDebug(msg string, args ...any)  { Logger.Debug(msg, args...) }
func logInfo(msg string, args ...any)   { Logger.Info(msg, args...) }
func logWarn(msg string, args ...any)   { Logger.Warn(msg, args...) }
func logError(msg string, args ...any)  { Logger.Error(msg, args...) }
