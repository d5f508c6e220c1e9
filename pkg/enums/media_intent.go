package enums

import "fmt"

// MediaIntentStatus tracks a remote upload from staging until its image row lands.
type MediaIntentStatus string

const (
	MediaIntentPending   MediaIntentStatus = "pending"
	MediaIntentCommitted MediaIntentStatus = "committed"
	MediaIntentAborted   MediaIntentStatus = "aborted"
)

var validMediaIntentStatuses = []MediaIntentStatus{
	MediaIntentPending,
	MediaIntentCommitted,
	MediaIntentAborted,
}

// String returns the literal string for the status.
func (s MediaIntentStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s MediaIntentStatus) IsValid() bool {
	for _, candidate := range validMediaIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMediaIntentStatus converts raw input into a MediaIntentStatus.
func ParseMediaIntentStatus(value string) (MediaIntentStatus, error) {
	for _, candidate := range validMediaIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid media intent status %q", value)
}
