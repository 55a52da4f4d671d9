package atom

import (
	"fmt"
	"strings"
	"time"
)

// UpdateTrace records what a single update did: which watchers ran, which
// were skipped by their predicate, and whether a new version was published.
type UpdateTrace struct {
	Store     string        `json:"store"`
	Version   uint64        `json:"version"`
	Published bool          `json:"published"`
	Applied   []string      `json:"applied,omitempty"`
	Skipped   []string      `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// String renders the trace on one line, e.g.
// `todo v4 published applied=[list statistics] skipped=[url tabs] 12µs`.
func (t UpdateTrace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%d", t.Store, t.Version)
	if t.Published {
		b.WriteString(" published")
	} else {
		b.WriteString(" unchanged")
	}
	if len(t.Applied) > 0 {
		fmt.Fprintf(&b, " applied=[%s]", strings.Join(t.Applied, ", "))
	}
	if len(t.Skipped) > 0 {
		fmt.Fprintf(&b, " skipped=[%s]", strings.Join(t.Skipped, ", "))
	}
	fmt.Fprintf(&b, " %s", t.Duration)
	return b.String()
}

// TraceFunc receives the trace of every successful update.
type TraceFunc func(UpdateTrace)
