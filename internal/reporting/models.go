package reporting

import "expertassist/internal/calls"

// Dashboard aggregates one user's experts and calls.
type Dashboard struct {
	TotalExperts      int            `json:"totalExperts"`
	ExpertsByCategory map[string]int `json:"expertsByCategory"`

	TotalCalls     int            `json:"totalCalls"`
	CallsByStatus  map[string]int `json:"callsByStatus"`
	ActiveCalls    int            `json:"activeCalls"`
	CompletedCalls int            `json:"completedCalls"`
	FailedCalls    int            `json:"failedCalls"`
	CanceledCalls  int            `json:"canceledCalls"`

	TotalDurationSeconds   int `json:"totalDurationSeconds"`
	AverageDurationSeconds int `json:"averageDurationSeconds"`
	RecordedCalls          int `json:"recordedCalls"`

	// SuccessRate is completed over finished calls, 0..1.
	SuccessRate float64 `json:"successRate"`

	RecentCalls []calls.CallWithExpert `json:"recentCalls"`
}
