package miner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Failure records one slide's mining failure and the requirement violated.
type Failure struct {
	SlideID string
	Err     error
}

// Report aggregates the outcome of a batch mining run. Per-slide failures
// are collected here instead of aborting the batch, so an operator can
// re-run with adjusted thresholds for exactly the slides that failed.
type Report struct {
	mu       sync.Mutex
	Mined    []string
	Skipped  []string
	Failures []Failure
}

func newReport() *Report {
	return &Report{}
}

func (r *Report) addMined(slideID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Mined = append(r.Mined, slideID)
}

func (r *Report) addSkipped(slideID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, slideID)
}

func (r *Report) addFailure(slideID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Failure{SlideID: slideID, Err: err})
}

// sort orders all entries by slide identifier for deterministic output.
func (r *Report) sort() {
	sort.Strings(r.Mined)
	sort.Strings(r.Skipped)
	sort.Slice(r.Failures, func(i, j int) bool {
		return r.Failures[i].SlideID < r.Failures[j].SlideID
	})
}

// Failed reports whether any slide failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// Summary renders a human-readable aggregate of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mined %d, skipped %d, failed %d", len(r.Mined), len(r.Skipped), len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.SlideID, f.Err)
	}
	return b.String()
}
