// Package pipeline orchestrates the fetch→filter→enrich→flatten runs
// and the feedback publishing flow. Components hold no global state:
// each Run takes its inputs explicitly and returns an immutable result.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Unknown is the sentinel written wherever an owner, author list or
// category resolves empty. The original tool only defaulted the
// zero-session branch; this codebase applies one convention everywhere.
const Unknown = "Неизвестно"

func unknownIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

// formatElapsed renders a duration as "X ч Y мин Z сек" for progress lines.
func formatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%d ч %d мин %d сек", h, m, s)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(done) / float64(total) * 100)
}
