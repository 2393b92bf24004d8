// Package report decouples the pipeline from its output surface: every
// component receives a Reporter instead of writing to a logger directly,
// so runs are observable from a CLI, a test, or nothing at all.
package report

import (
	"fmt"
	"log"
)

// Reporter receives human-readable log and progress lines from a run.
type Reporter interface {
	Log(msg string)
	Progress(msg string)
}

// Logf formats and forwards a log line. Nil-safe.
func Logf(r Reporter, format string, args ...any) {
	if r == nil {
		return
	}
	r.Log(fmt.Sprintf(format, args...))
}

// Progressf formats and forwards a progress line. Nil-safe.
func Progressf(r Reporter, format string, args ...any) {
	if r == nil {
		return
	}
	r.Progress(fmt.Sprintf(format, args...))
}

type stdLog struct{}

func (stdLog) Log(msg string)      { log.Print(msg) }
func (stdLog) Progress(msg string) { log.Print(msg) }

// StdLog reports through the standard library logger.
func StdLog() Reporter { return stdLog{} }

type discard struct{}

func (discard) Log(string)      {}
func (discard) Progress(string) {}

// Discard swallows everything. Useful in tests.
func Discard() Reporter { return discard{} }

// Capture accumulates lines in memory for assertions.
type Capture struct {
	Logs       []string
	Progresses []string
}

func (c *Capture) Log(msg string)      { c.Logs = append(c.Logs, msg) }
func (c *Capture) Progress(msg string) { c.Progresses = append(c.Progresses, msg) }
