package pipeline

import (
	"context"
	"time"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
)

// Report lists topics marked published whose job never published them.
// The scheduler marks topics optimistically at dispatch, so a failed or lost
// job leaves such a topic behind.
type Report struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Divergences []blog.Divergence `json:"divergences"`
}

// Clean reports whether nothing needs attention.
func (r *Report) Clean() bool {
	return len(r.Divergences) == 0
}

// Count returns the number of divergences with the given reason.
func (r *Report) Count(reason blog.DivergenceReason) int {
	n := 0
	for _, d := range r.Divergences {
		if d.Reason == reason {
			n++
		}
	}
	return n
}

// Reconcile builds the reconciliation report.
func (o *Orchestrator) Reconcile(ctx context.Context) (*Report, error) {
	divergences, err := o.store.ListPublishDivergences(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build reconciliation report")
	}
	if divergences == nil {
		divergences = []blog.Divergence{}
	}
	return &Report{GeneratedAt: o.now(), Divergences: divergences}, nil
}
