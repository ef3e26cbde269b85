package deletion

// State is a step of a deletion request. Only forward transitions happen.
type State int

const (
	StateIdle State = iota
	StatePreviewRequested
	StatePreviewReady
	StatePreviewFailed
	StateDeleteConfirmed
	StateDeleted
	StateDeleteFailed
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePreviewRequested:
		return "PreviewRequested"
	case StatePreviewReady:
		return "PreviewReady"
	case StatePreviewFailed:
		return "PreviewFailed"
	case StateDeleteConfirmed:
		return "DeleteConfirmed"
	case StateDeleted:
		return "Deleted"
	case StateDeleteFailed:
		return "DeleteFailed"
	case StateVerified:
		return "Verified"
	default:
		return "Unknown"
	}
}
