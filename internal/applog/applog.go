// Package applog provides process-wide structured logging for the loader,
// filter, and search subsystems. It never changes a query result, only what
// gets written to stderr while one is computed.
package applog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// verbose gates Debugf/Progress output. Set via the STORYQUERY_DEBUG
// environment variable, a single on/off debug gate rather than a level.
var verbose = os.Getenv("STORYQUERY_DEBUG") == "1" || os.Getenv("STORYQUERY_DEBUG") == "true"

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func write(level, component, format string, args ...interface{}) {
	mu.Lock()
	w := out
	mu.Unlock()

	ts := time.Now().UTC().Format(time.RFC3339)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "%s level=%s component=%s msg=%q\n", ts, level, component, msg)
}

// Infof logs a routine, always-visible event tagged with a component name.
func Infof(component, format string, args ...interface{}) {
	write("info", component, format, args...)
}

// Warnf logs a recoverable problem tagged with a component name.
func Warnf(component, format string, args ...interface{}) {
	write("warn", component, format, args...)
}

// Errorf logs a failed operation tagged with a component name.
func Errorf(component, format string, args ...interface{}) {
	write("error", component, format, args...)
}

// Debugf logs a verbose diagnostic, suppressed unless STORYQUERY_DEBUG is
// "1" or "true".
func Debugf(component, format string, args ...interface{}) {
	if !verbose {
		return
	}
	write("debug", component, format, args...)
}

// Progress reports done/total completion for a long-running build, such as
// the full-text indexer's document loop. Suppressed unless STORYQUERY_DEBUG
// is "1" or "true"; the exact format is unspecified by the filter/search contract.
func Progress(component string, done, total int) {
	if !verbose || total <= 0 {
		return
	}
	pct := float64(done) * 100 / float64(total)
	write("debug", component, "progress %d/%d (%.2f%%)", done, total, pct)
}
