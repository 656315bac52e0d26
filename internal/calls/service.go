package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"expertassist/internal/audit"
	"expertassist/internal/experts"
	"expertassist/pkg/logger"

	"github.com/google/uuid"
)

// ExpertLookup resolves an expert owned by the caller.
type ExpertLookup interface {
	GetForOwner(ctx context.Context, userID, id string) (experts.Expert, error)
}

// Runner drives call lifecycles in the background.
type Runner interface {
	// Start must not block. done is invoked exactly once when the lifecycle ends.
	Start(c Call, done func())
	Cancel(ctx context.Context, callID string) error
}

// Limiter caps concurrently active calls per user.
type Limiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// Hanger terminates a live provider call.
type Hanger interface {
	EndCall(ctx context.Context, providerCallSID string) error
}

type InitiateRequest struct {
	ExpertID     string
	Goal         string
	ContextLinks []string
	ContextText  string
}

var (
	ErrNoTranscript = errors.New("transcript not available")
	ErrNoRecording  = errors.New("recording not available")
)

type Deps struct {
	Repo    Repository
	Experts ExpertLookup
	Runner  Runner

	// Optional collaborators.
	Limiter Limiter
	Hanger  Hanger
	Audit   *audit.Service
	Log     *slog.Logger
}

// Service is the API-facing call workflow: initiation, reads, end and retry.
type Service struct {
	repo    Repository
	experts ExpertLookup
	runner  Runner
	limiter Limiter
	hanger  Hanger
	audit   *audit.Service
	log     *slog.Logger
	clock   func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:    d.Repo,
		experts: d.Experts,
		runner:  d.Runner,
		limiter: d.Limiter,
		hanger:  d.Hanger,
		audit:   d.Audit,
		log:     logger.Or(d.Log),
		clock:   time.Now,
	}
}

// Initiate stores a PENDING call and hands it to the runner. The returned
// record is the PENDING snapshot; progress is observed by polling Get.
func (s *Service) Initiate(ctx context.Context, userID string, req InitiateRequest) (Call, error) {
	goal := strings.TrimSpace(req.Goal)
	expertID := strings.TrimSpace(req.ExpertID)
	if goal == "" || expertID == "" {
		return Call{}, fmt.Errorf("%w: goal and expertId are required", ErrInvalidArgument)
	}
	if _, err := s.experts.GetForOwner(ctx, userID, expertID); err != nil {
		return Call{}, err
	}

	release, err := s.acquire(ctx, userID)
	if err != nil {
		return Call{}, err
	}

	now := s.clock().UTC()
	c, err := s.repo.Create(ctx, Call{
		ID:           uuid.NewString(),
		Goal:         goal,
		UserID:       userID,
		ExpertID:     expertID,
		Status:       StatusPending,
		ContextLinks: cleanLinks(req.ContextLinks),
		ContextText:  strings.TrimSpace(req.ContextText),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		release()
		return Call{}, err
	}

	s.runner.Start(c, release)
	s.record(ctx, audit.EventTypeCallInitiated, userID, c.ID, "call initiated")
	return c, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Call, error) {
	return s.repo.GetForOwner(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]CallWithExpert, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, f.Status)
	}
	return s.repo.ListForOwner(ctx, userID, f)
}

func (s *Service) Transcript(ctx context.Context, userID, id string) (string, error) {
	c, err := s.repo.GetForOwner(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if c.Transcript == "" {
		return "", ErrNoTranscript
	}
	return c.Transcript, nil
}

func (s *Service) Recording(ctx context.Context, userID, id string) (string, error) {
	c, err := s.repo.GetForOwner(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if c.RecordingURL == "" {
		return "", ErrNoRecording
	}
	return c.RecordingURL, nil
}

// End cancels a non-terminal call: the running lifecycle stops at its next
// checkpoint, the record becomes CANCELED and the provider call is hung up.
func (s *Service) End(ctx context.Context, userID, id string) (Call, error) {
	c, err := s.repo.GetForOwner(ctx, userID, id)
	if err != nil {
		return Call{}, err
	}
	if c.Status.Terminal() {
		return Call{}, fmt.Errorf("%w: call already %s", ErrStatusConflict, c.Status)
	}

	if err := s.runner.Cancel(ctx, id); err != nil {
		s.log.Warn("cancel request failed", "call_id", id, "err", err)
	}

	ended, err := s.repo.Finish(ctx, id, StatusCanceled, "", s.clock())
	if err != nil {
		return Call{}, err
	}

	sid := ended.ProviderCallSID
	if sid == "" {
		sid = c.ProviderCallSID
	}
	if sid != "" && s.hanger != nil {
		if err := s.hanger.EndCall(ctx, sid); err != nil {
			s.log.Warn("provider hangup failed", "call_id", id, "provider_call_sid", sid, "err", err)
		}
	}

	s.record(ctx, audit.EventTypeCallCanceled, userID, id, "call ended by user")
	return ended, nil
}

// Retry starts a fresh call with the same goal, expert and context as a
// failed or canceled one. The original record is left untouched.
func (s *Service) Retry(ctx context.Context, userID, id string) (Call, error) {
	prev, err := s.repo.GetForOwner(ctx, userID, id)
	if err != nil {
		return Call{}, err
	}
	if prev.Status != StatusFailed && prev.Status != StatusCanceled {
		return Call{}, fmt.Errorf("%w: only failed or canceled calls can be retried", ErrStatusConflict)
	}

	c, err := s.Initiate(ctx, userID, InitiateRequest{
		ExpertID:     prev.ExpertID,
		Goal:         prev.Goal,
		ContextLinks: prev.ContextLinks,
		ContextText:  prev.ContextText,
	})
	if err != nil {
		return Call{}, err
	}
	s.record(ctx, audit.EventTypeCallRetried, userID, c.ID, "retry of "+prev.ID)
	return c, nil
}

// acquire takes an active-call slot. A limiter outage fails open.
func (s *Service) acquire(ctx context.Context, userID string) (func(), error) {
	if s.limiter == nil {
		return func() {}, nil
	}
	ok, err := s.limiter.Acquire(ctx, userID)
	if err != nil {
		s.log.Warn("active call limiter unavailable", "user_id", userID, "err", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrTooManyActiveCalls
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.limiter.Release(relCtx, userID); err != nil {
				s.log.Warn("active call slot release failed", "user_id", userID, "err", err)
			}
		})
	}, nil
}

func (s *Service) record(ctx context.Context, typ audit.EventType, userID, callID, msg string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogCallEvent(ctx, typ, userID, callID, msg); err != nil {
		s.log.Warn("audit append failed", "call_id", callID, "type", typ, "err", err)
	}
}

func cleanLinks(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
