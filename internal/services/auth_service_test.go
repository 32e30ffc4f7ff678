package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"furniplan/internal/mocks"
	"furniplan/internal/models"
	"furniplan/internal/repositories"
)

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3nha-forte"), bcrypt.MinCost)
	require.NoError(t, err)

	users := new(mocks.UserRepositoryMock)
	users.On("GetByEmail", mock.Anything, "ana@furniplan.test").
		Return(&models.User{ID: 3, Name: "Ana", Email: "ana@furniplan.test", PasswordHash: string(hash), RoleID: 40}, nil)
	users.On("GetByEmail", mock.Anything, "ghost@furniplan.test").Return(nil, repositories.ErrUserNotFound)

	svc := NewAuthService(users, []byte("test-secret"), time.Hour)

	res, err := svc.Login(context.Background(), " ana@furniplan.test ", "s3nha-forte")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3), res.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, time.Minute)

	_, err = svc.Login(context.Background(), "ana@furniplan.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "ghost@furniplan.test", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	h, err := HashPassword("long-enough")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("long-enough")))
}
