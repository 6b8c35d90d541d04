// Package logging is a minimal process-wide logger with a global disable
// switch. Components prefix their messages with a bracketed tag, e.g.
// "[Bridge] ..." so interleaved invocations stay readable.
package logging

import (
	"log"
	"os"
)

var (
	disabled = false
	debug    = false
	logger   = log.New(os.Stderr, "", log.LstdFlags)
)

// Init applies the logging flags from configuration. Called once at startup.
func Init(enabled, debugEnabled bool) {
	disabled = !enabled
	debug = debugEnabled
}

// Disable turns off all logging.
func Disable() {
	disabled = true
}

// Enable turns logging back on.
func Enable() {
	disabled = false
}

// Infof logs a formatted info message.
func Infof(format string, v ...any) {
	if !disabled {
		logger.Printf(format, v...)
	}
}

// Warnf logs a formatted warning message.
func Warnf(format string, v ...any) {
	if !disabled {
		logger.Printf("WARN "+format, v...)
	}
}

// Errorf logs a formatted error message.
func Errorf(format string, v ...any) {
	if !disabled {
		logger.Printf("ERROR "+format, v...)
	}
}

// Debugf logs a formatted debug message. Suppressed unless debug logging
// was enabled at startup.
func Debugf(format string, v ...any) {
	if !disabled && debug {
		logger.Printf(format, v...)
	}
}
