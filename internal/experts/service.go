package experts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service implements owner-scoped expert management.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (Expert, error) {
	in, err := normalize(in)
	if err != nil {
		return Expert{}, err
	}
	now := s.clock().UTC()
	return s.repo.Create(ctx, Expert{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		PhoneNumber: in.PhoneNumber,
		Category:    in.Category,
		Company:     in.Company,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) Get(ctx context.Context, userID, id string) (Expert, error) {
	return s.repo.GetForOwner(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID string, category Category) ([]Expert, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, category)
	}
	return s.repo.ListForOwner(ctx, userID, category)
}

func (s *Service) Update(ctx context.Context, userID, id string, in Input) (Expert, error) {
	in, err := normalize(in)
	if err != nil {
		return Expert{}, err
	}
	cur, err := s.repo.GetForOwner(ctx, userID, id)
	if err != nil {
		return Expert{}, err
	}
	cur.Name = in.Name
	cur.PhoneNumber = in.PhoneNumber
	cur.Category = in.Category
	cur.Company = in.Company
	cur.Notes = in.Notes
	cur.UpdatedAt = s.clock().UTC()
	return s.repo.Update(ctx, cur)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Company = strings.TrimSpace(in.Company)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Category == "" {
		in.Category = CategoryOther
	}
	switch {
	case in.Name == "":
		return Input{}, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	case !ValidPhone(in.PhoneNumber):
		return Input{}, fmt.Errorf("%w: phone number is not valid", ErrInvalidArgument)
	case !in.Category.Valid():
		return Input{}, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, in.Category)
	}
	return in, nil
}
