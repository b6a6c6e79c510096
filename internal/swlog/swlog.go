// Package swlog is the ambient logger used throughout sparkwheel. It is
// intentionally small: a toggleable DEBUG/TRACE pair plus a stderr
// warning printer, in the same shape the example corpus's graft `log`
// package is used (log.DEBUG/log.TRACE/log.PrintfStdErr), but without a
// global on/off file-scoped singleton package import cycle.
package swlog

import (
	"fmt"
	"os"
	"strings"
)

var (
	// DebugOn mirrors graft's log.DebugOn toggle.
	DebugOn bool
	// TraceOn enables the more verbose TRACE level.
	TraceOn bool
)

func init() {
	DebugOn = envFlag("SPARKWHEEL_DEBUG") || envFlag("DEBUG")
	TraceOn = envFlag("SPARKWHEEL_TRACE")
}

func envFlag(name string) bool {
	v := strings.ToLower(os.Getenv(name))
	return v != "" && v != "0" && v != "false"
}

// DEBUG prints a debug line to stderr when debug logging is enabled.
func DEBUG(format string, args ...interface{}) {
	if !DebugOn {
		return
	}
	fmt.Fprintf(os.Stderr, "DEBUG> "+format+"\n", args...)
}

// TRACE prints a trace line to stderr when trace logging is enabled.
func TRACE(format string, args ...interface{}) {
	if !TraceOn {
		return
	}
	fmt.Fprintf(os.Stderr, "TRACE> "+format+"\n", args...)
}

// PrintfStdErr writes directly to stderr regardless of debug settings,
// used for warnings that must always surface.
func PrintfStdErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
