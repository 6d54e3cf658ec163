package registry

type RunStatus string

const (
	RunStatusSubmitted        RunStatus = "submitted"
	RunStatusStarted          RunStatus = "started"
	RunStatusFailed           RunStatus = "failed"
	RunStatusCompletedSuccess RunStatus = "completed - success"
	RunStatusCompletedFailure RunStatus = "completed - failure"
)

func (s RunStatus) Complete() bool {
	return s == RunStatusCompletedSuccess || s == RunStatusCompletedFailure
}

// Submitted reports whether the run has not failed or finished yet.
func (s RunStatus) Submitted() bool {
	return s == RunStatusSubmitted || s == RunStatusStarted
}
