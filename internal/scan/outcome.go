package scan

import (
	"time"

	"petscan/internal/biometry"
	"petscan/internal/frame"
)

// Outcome is the result of one ScanAttempt. The concrete types are Pending,
// Matched, Empty and Failed.
type Outcome interface {
	outcome()
	// Label is the stable name stored in history.
	Label() string
}

// Pending is an attempt still waiting for the matcher.
type Pending struct{}

// Matched carries ranked candidates, best first.
type Matched struct {
	Candidates []biometry.Candidate
	Message    string
}

// Empty means the matcher found no pet above the similarity threshold.
type Empty struct {
	Message string
}

// Failed wraps a search error.
type Failed struct {
	Err error
}

func (Pending) outcome() {}
func (Matched) outcome() {}
func (Empty) outcome()   {}
func (Failed) outcome()  {}

func (Pending) Label() string { return "pending" }
func (Matched) Label() string { return "matched" }
func (Empty) Label() string   { return "empty" }
func (Failed) Label() string  { return "failed" }

// Best returns the top candidate.
func (m Matched) Best() biometry.Candidate {
	return m.Candidates[0]
}

func outcomeOf(result *biometry.SearchResult, err error) Outcome {
	if err != nil {
		return Failed{Err: err}
	}
	if result == nil || !result.Found || len(result.Candidates) == 0 {
		msg := ""
		if result != nil {
			msg = result.Message
		}
		return Empty{Message: msg}
	}
	return Matched{Candidates: result.Candidates, Message: result.Message}
}

// Mode is the controller state.
type Mode string

const (
	ModeSelecting    Mode = "selecting"
	ModeLiveCamera   Mode = "live_camera"
	ModeSinglePhoto  Mode = "single_photo"
	ModeProfileShown Mode = "profile_shown"
)

// Source says what triggered an attempt.
type Source string

const (
	SourceTick   Source = "tick"
	SourceManual Source = "manual"
	SourcePhoto  Source = "photo"
)

// Attempt is one search round trip. It is not modified after it resolves.
type Attempt struct {
	ID          string
	Generation  uint64
	SessionID   string
	Mode        Mode
	Source      Source
	Image       frame.Image
	SubmittedAt time.Time
	ResolvedAt  time.Time
	Outcome     Outcome
	// Abandoned marks a response that arrived after its session ended.
	Abandoned bool
}

// Label returns the history label, "abandoned" for discarded responses.
func (a Attempt) Label() string {
	if a.Abandoned {
		return "abandoned"
	}
	if a.Outcome == nil {
		return Pending{}.Label()
	}
	return a.Outcome.Label()
}

// StatusKind grades the status line.
type StatusKind string

const (
	StatusInfo  StatusKind = "info"
	StatusOK    StatusKind = "ok"
	StatusWarn  StatusKind = "warn"
	StatusError StatusKind = "error"
)

// Status is the single visible status region.
type Status struct {
	Text string     `json:"text"`
	Kind StatusKind `json:"kind"`
	At   time.Time  `json:"at"`
}
