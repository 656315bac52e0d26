package reporting

import (
	"context"
	"errors"

	"expertassist/internal/calls"
	"expertassist/internal/experts"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const recentCallsLimit = 5

type ExpertSource interface {
	ListForOwner(ctx context.Context, userID string, category experts.Category) ([]experts.Expert, error)
}

type CallSource interface {
	ListForOwner(ctx context.Context, userID string, f calls.ListFilter) ([]calls.CallWithExpert, error)
	CountByStatus(ctx context.Context, userID string) (map[calls.Status]int, error)
}

type Service struct {
	experts ExpertSource
	calls   CallSource
}

func NewService(e ExpertSource, c CallSource) *Service { return &Service{experts: e, calls: c} }

func (s *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	if userID == "" {
		return Dashboard{}, ErrInvalidRequest
	}
	if s.experts == nil || s.calls == nil {
		return Dashboard{}, errors.New("reporting: sources not configured")
	}

	ex, err := s.experts.ListForOwner(ctx, userID, "")
	if err != nil {
		return Dashboard{}, err
	}
	counts, err := s.calls.CountByStatus(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	rows, err := s.calls.ListForOwner(ctx, userID, calls.ListFilter{})
	if err != nil {
		return Dashboard{}, err
	}

	out := Dashboard{
		TotalExperts:      len(ex),
		ExpertsByCategory: map[string]int{},
		CallsByStatus:     map[string]int{},
		RecentCalls:       []calls.CallWithExpert{},
	}
	for _, e := range ex {
		out.ExpertsByCategory[string(e.Category)]++
	}

	for st, n := range counts {
		out.CallsByStatus[string(st)] = n
		out.TotalCalls += n
		switch {
		case st == calls.StatusCompleted:
			out.CompletedCalls += n
		case st == calls.StatusFailed:
			out.FailedCalls += n
		case st == calls.StatusCanceled:
			out.CanceledCalls += n
		case st.Active():
			out.ActiveCalls += n
		}
	}

	durations := 0
	for _, c := range rows {
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		if c.DurationSeconds != nil {
			out.TotalDurationSeconds += *c.DurationSeconds
			durations++
		}
	}
	if durations > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / durations
	}
	if finished := out.CompletedCalls + out.FailedCalls; finished > 0 {
		out.SuccessRate = float64(out.CompletedCalls) / float64(finished)
	}

	if len(rows) > recentCallsLimit {
		rows = rows[:recentCallsLimit]
	}
	out.RecentCalls = append(out.RecentCalls, rows...)
	return out, nil
}
