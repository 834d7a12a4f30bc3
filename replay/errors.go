package replay

import "fmt"

var (
	ErrSealed    = fmt.Errorf("replay tape already sealed")
	ErrNotSealed = fmt.Errorf("replay tape not sealed")
)

// ReplayError reports a failure while recording or replaying a tape.
// Reasons include "seq_gap", "role_drift", "apply_failed", "state_desync"
// and "unsupported_version".
type ReplayError struct {
	StepIndex int    `json:"step_index"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}
