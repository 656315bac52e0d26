package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	s := NewService(NewMemoryRepo())
	s.cost = bcrypt.MinCost
	return s
}

func TestService_RegisterAndAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{FirstName: "Ada", LastName: "Lovelace", Email: " Ada@Example.com ", Password: "s3cret!"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, "s3cret!", u.PasswordHash)
	assert.Equal(t, "Ada Lovelace", u.FullName())

	got, err := svc.Authenticate(ctx, "ADA@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_RegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{FirstName: "A", LastName: "B", Email: "a@b.c", Password: "123456"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{FirstName: "A", LastName: "B", Email: "A@B.C", Password: "123456"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(ctx, RegisterInput{FirstName: "A", LastName: "B", Email: "x@y.z", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Register(ctx, RegisterInput{LastName: "B", Email: "x@y.z", Password: "123456"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
