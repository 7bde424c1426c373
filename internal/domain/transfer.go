package domain

// TransferStateName is a state of the resumable transfer state machine
type TransferStateName string

const (
	StateInit          TransferStateName = "init"
	StateRequesting    TransferStateName = "requesting"
	StateStreaming     TransferStateName = "streaming"
	StateRangeRejected TransferStateName = "range_rejected"
	StateVerifying     TransferStateName = "verifying"
	StateComplete      TransferStateName = "complete"
	StateRetryable     TransferStateName = "retryable"
	StateFatal         TransferStateName = "fatal"
)

// TransferState is owned by exactly one transfer invocation. The file on disk is the
// resumption checkpoint: Offset always equals its length when a new attempt starts.
type TransferState struct {
	VideoID       string
	Path          string
	State         TransferStateName
	Offset        int64
	Downloaded    int64
	ExpectedTotal *int64
	Attempt       int
}

// Transition moves the state machine to the given state
func (s *TransferState) Transition(next TransferStateName) {
	s.State = next
}

// IsTerminal reports whether the state machine has stopped
func (s *TransferState) IsTerminal() bool {
	return s.State == StateComplete || s.State == StateFatal
}

// SetExpectedTotal records the authoritative size learned from response headers
func (s *TransferState) SetExpectedTotal(total int64) {
	s.ExpectedTotal = &total
}

// Incomplete reports whether a known expected size has not been reached yet
func (s *TransferState) Incomplete(size int64) bool {
	return s.ExpectedTotal != nil && size < *s.ExpectedTotal
}
