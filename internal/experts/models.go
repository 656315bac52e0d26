package experts

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Expert is a professional contact a user can have the assistant call.
type Expert struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	Category    Category  `json:"category" db:"category"`
	Company     string    `json:"company,omitempty" db:"company"`
	Notes       string    `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

type Category string

const (
	CategoryRealtor        Category = "realtor"
	CategoryLender         Category = "lender"
	CategoryInspector      Category = "inspector"
	CategoryAppraiser      Category = "appraiser"
	CategoryAttorney       Category = "attorney"
	CategoryInsuranceAgent Category = "insurance_agent"
	CategoryOther          Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryRealtor, CategoryLender, CategoryInspector, CategoryAppraiser,
		CategoryAttorney, CategoryInsuranceAgent, CategoryOther:
		return true
	default:
		return false
	}
}

// Input carries the mutable expert fields for create and update.
type Input struct {
	Name        string
	PhoneNumber string
	Category    Category
	Company     string
	Notes       string
}

var (
	ErrNotFound        = errors.New("expert not found")
	ErrInvalidArgument = errors.New("invalid expert")
)

// phonePattern accepts common North American layouts such as
// (555) 123-4567, 555.123.4567 and +15551234567.
var phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)

// ValidPhone reports whether s looks like a dialable phone number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}
