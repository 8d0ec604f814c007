package playback

import "fmt"

// State is the playback session lifecycle.
type State int

const (
	// StateIdle indicates a session with no playback started.
	StateIdle State = iota
	// StateProcessing indicates audio for the current block is being fetched.
	StateProcessing
	// StatePlaying indicates an audio source is active.
	StatePlaying
	// StatePaused indicates playback was interrupted and can resume.
	StatePaused
	// StateStopped indicates the last block finished; terminal until SetText.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name, so JSON responses carry "playing"
// rather than an opaque number.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateStopped; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown playback state %q", b)
}
