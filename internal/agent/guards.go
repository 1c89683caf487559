package agent

import "strings"

// loopDetector tracks repeated identical tool calls to detect stuck runs.
// It is owned by a single run. A zero threshold disables it.
type loopDetector struct {
	threshold int
	counts    map[string]int
}

func newLoopDetector(threshold int) *loopDetector {
	return &loopDetector{
		threshold: threshold,
		counts:    make(map[string]int),
	}
}

func loopKey(name, input string) string {
	return name + "\x00" + strings.ToLower(strings.TrimSpace(input))
}

// stuck reports whether proposing this call again would reach the
// threshold. Inputs are compared case-insensitively with surrounding
// whitespace removed.
func (d *loopDetector) stuck(name, input string) bool {
	if d.threshold <= 0 {
		return false
	}
	return d.counts[loopKey(name, input)]+1 >= d.threshold
}

// done records a dispatched call. Failed calls do not count: retrying a
// failing tool with the same input is the model's call to make.
func (d *loopDetector) done(name, input string, failed bool) {
	if d.threshold <= 0 || failed {
		return
	}
	d.counts[loopKey(name, input)]++
}
