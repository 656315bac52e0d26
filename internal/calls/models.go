package calls

import (
	"errors"
	"fmt"
	"time"
)

// Call is one automated outbound call to an expert and everything learned from it.
//
// Transcript, Summary, DurationSeconds and CompletedAt are written together
// by the final COMPLETED transition. FailureReason is set only for FAILED.
type Call struct {
	ID       string `json:"id" db:"id"`
	Goal     string `json:"goal" db:"goal"`
	UserID   string `json:"userId" db:"user_id"`
	ExpertID string `json:"expertId" db:"expert_id"`
	Status   Status `json:"status" db:"status"`

	RecordingURL  string `json:"recordingUrl,omitempty" db:"recording_url"`
	Transcript    string `json:"transcript,omitempty" db:"transcript"`
	Summary       string `json:"summary,omitempty" db:"summary"`
	FailureReason string `json:"failureReason,omitempty" db:"failure_reason"`

	ContextLinks []string `json:"contextLinks" db:"context_links"`
	ContextText  string   `json:"contextText,omitempty" db:"context_text"`

	DurationSeconds *int `json:"durationSeconds,omitempty" db:"duration_seconds"`

	// ProviderCallSID is the telephony provider's identifier for the placed call.
	ProviderCallSID string `json:"providerCallSid,omitempty" db:"provider_call_sid"`

	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}

// ExpertSummary is the slice of expert data joined into call listings.
type ExpertSummary struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Category    string `json:"category"`
}

// CallWithExpert is a listing row. Expert is nil when the expert was deleted.
type CallWithExpert struct {
	Call
	Expert *ExpertSummary `json:"expert,omitempty"`
}

// Result is the payload of the final COMPLETED write.
type Result struct {
	Transcript      string
	Summary         string
	DurationSeconds int
	CompletedAt     time.Time
}

type ListFilter struct {
	Status Status
}

type Status string

const (
	StatusPending     Status = "pending"
	StatusDialing     Status = "dialing"
	StatusConnected   Status = "connected"
	StatusInProgress  Status = "in_progress"
	StatusSummarizing Status = "summarizing"
	// StatusNeedsFollowup is reserved; no transition produces it.
	StatusNeedsFollowup Status = "needs_followup"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCanceled      Status = "canceled"
)

var allStatuses = []Status{
	StatusPending, StatusDialing, StatusConnected, StatusInProgress, StatusSummarizing,
	StatusNeedsFollowup, StatusCompleted, StatusFailed, StatusCanceled,
}

// ActiveStatuses are the states a running lifecycle passes through.
var ActiveStatuses = []Status{
	StatusPending, StatusDialing, StatusConnected, StatusInProgress, StatusSummarizing,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses are never left once entered.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

func (s Status) Active() bool {
	for _, v := range ActiveStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, raw)
	}
	return s, nil
}

var (
	ErrNotFound           = errors.New("call not found")
	ErrStatusConflict     = errors.New("call status changed concurrently")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrTooManyActiveCalls = errors.New("too many active calls")
)
