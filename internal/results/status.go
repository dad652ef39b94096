package results

// Status is the canonical processing state of an engine output.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusComplete   Status = "COMPLETE"
	StatusError      Status = "ERROR"
	StatusPaused     Status = "PAUSED"
	StatusDeleted    Status = "DELETED"
	StatusUnknown    Status = "UNKNOWN"
)

// IncompleteStatuses lists states that job runners can still advance. ERROR
// and PAUSED are excluded: those need manual intervention and get picked up
// by the full sweep instead.
var IncompleteStatuses = []Status{StatusScheduled, StatusInProgress}

// TranslateState maps a raw engine state string to the canonical status.
// Total: any state outside the known vocabulary maps to UNKNOWN.
func TranslateState(raw string) Status {
	switch raw {
	case "ok":
		return StatusComplete
	case "running":
		return StatusInProgress
	case "scheduled", "new", "queued":
		return StatusScheduled
	case "error":
		return StatusError
	case "paused":
		return StatusPaused
	case "deleted", "discarded":
		return StatusDeleted
	default:
		return StatusUnknown
	}
}
