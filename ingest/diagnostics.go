package ingest

import (
	"fmt"
	"log/slog"
)

// Diagnostic describes one skipped or degraded item. Page is 1-based; 0
// means document level.
type Diagnostic struct {
	Page       int    `json:"page,omitempty"`
	Enrollment string `json:"enrollment,omitempty"`
	Reason     string `json:"reason"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Page > 0 && d.Enrollment != "":
		return fmt.Sprintf("page %d, enrollment %s: %s", d.Page, d.Enrollment, d.Reason)
	case d.Page > 0:
		return fmt.Sprintf("page %d: %s", d.Page, d.Reason)
	case d.Enrollment != "":
		return fmt.Sprintf("enrollment %s: %s", d.Enrollment, d.Reason)
	}
	return d.Reason
}

// Diagnostics accumulates the anomalies of one run in order.
type Diagnostics []Diagnostic

// At returns a Reporter that stamps page and enrollment on every entry.
func (d *Diagnostics) At(page int, enrollment string) Reporter {
	return Reporter{d: d, page: page, enrollment: enrollment}
}

// Strings renders every entry.
func (d Diagnostics) Strings() []string {
	out := make([]string, len(d))
	for i, x := range d {
		out[i] = x.String()
	}
	return out
}

// Log writes every entry at Warn.
func (d Diagnostics) Log(logger *slog.Logger) {
	for _, x := range d {
		logger.Warn("ingest diagnostic", "page", x.Page, "enrollment", x.Enrollment, "reason", x.Reason)
	}
}

// Reporter appends diagnostics for one location. The zero Reporter
// discards everything.
type Reporter struct {
	d          *Diagnostics
	page       int
	enrollment string
}

// Addf records a formatted reason.
func (r Reporter) Addf(format string, args ...any) {
	if r.d == nil {
		return
	}
	*r.d = append(*r.d, Diagnostic{Page: r.page, Enrollment: r.enrollment, Reason: fmt.Sprintf(format, args...)})
}
