// internal/artifact/fusion.go
package artifact

import "sort"

// FusionStats accumulates applied graph-optimization pass counts keyed by
// produced model file. It is created by the orchestrator, filled while models
// are optimized, and handed to the reporter at the end of the run.
type FusionStats struct {
	counts map[string]map[string]int
	order  []string
}

// NewFusionStats returns an empty accumulator.
func NewFusionStats() *FusionStats {
	return &FusionStats{counts: make(map[string]map[string]int)}
}

// Record stores the pass counts applied while producing file. Recording the
// same file again replaces its counts.
func (f *FusionStats) Record(file string, passes map[string]int) {
	if len(passes) == 0 {
		return
	}
	if _, seen := f.counts[file]; !seen {
		f.order = append(f.order, file)
	}
	copied := make(map[string]int, len(passes))
	for name, count := range passes {
		copied[name] = count
	}
	f.counts[file] = copied
}

// Empty reports whether any pass counts were recorded.
func (f *FusionStats) Empty() bool { return len(f.counts) == 0 }

// Files returns recorded model files in insertion order.
func (f *FusionStats) Files() []string {
	files := make([]string, len(f.order))
	copy(files, f.order)
	return files
}

// Passes returns the recorded counts for file.
func (f *FusionStats) Passes(file string) map[string]int {
	return f.counts[file]
}

// PassNames returns the sorted union of optimization-pass names recorded
// across all files.
func (f *FusionStats) PassNames() []string {
	seen := make(map[string]struct{})
	for _, passes := range f.counts {
		for name := range passes {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
