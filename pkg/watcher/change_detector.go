package watcher

// ChangeAnalysis describes how to react to a debounced change
type ChangeAnalysis struct {
	Reload       bool // Re-read the config and rebuild the circuit
	KeepServing  bool // Config is gone; keep the last circuit
	ChangedFiles []string
}

// AnalyzeChanges decides what a change event requires
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeConfig:
		analysis.Reload = true
	case ChangeTypeRemoved:
		// Usually the first half of an atomic save; the Create that follows
		// arrives as a separate ChangeTypeConfig event
		analysis.KeepServing = true
	}

	return analysis
}
