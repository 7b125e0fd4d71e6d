package playback

type Status uint32

const (
	StatusClosed Status = iota
	StatusOpen
	StatusEnded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusEnded:
		return "ended"
	case StatusFailed:
		return "failed"
	default:
		return "closed"
	}
}
