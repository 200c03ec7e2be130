package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	ResolveExperiments Phase = iota
	ListRuns
	FetchRuns
	CommitRecords
	RefreshCache
	WatchSource
)

func (p Phase) String() string {
	switch p {
	case ResolveExperiments:
		return "resolve_experiments"
	case ListRuns:
		return "list_runs"
	case FetchRuns:
		return "fetch_runs"
	case CommitRecords:
		return "commit_records"
	case RefreshCache:
		return "refresh_cache"
	case WatchSource:
		return "watch_source"
	default:
		return ""
	}
}

func resolveExperimentsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveExperiments,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Resolved %d experiment(s)", total),
	}
}

func listRunsUpdate(experiment string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListRuns,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("%s: found %d run(s)", experiment, total),
	}
}

func fetchRunUpdate(experiment, run string, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRuns,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s: fetched run %s (%d/%d)", experiment, run, step, total),
	}
}

func commitUpdate(experiment string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CommitRecords,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("%s: committing %d record(s)", experiment, total),
	}
}

func refreshCacheUpdate(experiment string, entries int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshCache,
		Step:    entries,
		Total:   entries,
		Message: fmt.Sprintf("%s: run cache persisted (%d entries)", experiment, entries),
	}
}

func watchSourceUpdate(uri string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WatchSource,
		Message: fmt.Sprintf("Watching %s for new data", uri),
	}
}
