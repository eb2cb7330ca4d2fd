package service

import (
	"context"
	"testing"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/repository"
	"github.com/BerniceZTT/pipeline_end/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAdminAndLogin(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewUserService(store)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx, "secret123"))
	require.NoError(t, svc.SeedAdmin(ctx, "other-password"))

	count, err := store.CountUsersByRole(ctx, models.UserRoleSUPER_ADMIN)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	resp, err := svc.Login(ctx, models.LoginRequest{Username: "admin", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.UserRoleSUPER_ADMIN, resp.User.Role)

	claims, err := utils.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims["id"])

	_, err = svc.Login(ctx, models.LoginRequest{Username: "admin", Password: "other-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Username: "nobody", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewUserService(store)
	ctx := context.Background()

	user, err := svc.Create(ctx, models.CreateUserRequest{Username: "sam", Password: "123456", Role: models.UserRoleSALES})
	require.NoError(t, err)
	user.Status = models.UserStatusDISABLED
	require.NoError(t, store.SaveUser(ctx, user))

	_, err = svc.Login(ctx, models.LoginRequest{Username: "sam", Password: "123456"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser(t *testing.T) {
	svc := NewUserService(repository.NewMemoryStore())
	ctx := context.Background()

	user, err := svc.Create(ctx, models.CreateUserRequest{Username: "lee", Password: "123456", Role: models.UserRoleSTAFF})
	require.NoError(t, err)
	assert.Equal(t, "lee", user.DisplayName)
	assert.NotEqual(t, "123456", user.Password)

	_, err = svc.Create(ctx, models.CreateUserRequest{Username: "lee", Password: "123456", Role: models.UserRoleSTAFF})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.Create(ctx, models.CreateUserRequest{Username: "kim", Password: "123456", Role: "OWNER"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, models.CreateUserRequest{Username: "kim", Password: "123", Role: models.UserRoleSTAFF})
	assert.ErrorIs(t, err, ErrValidation)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].Password)
}

func TestUpdateProfile(t *testing.T) {
	svc := NewUserService(repository.NewMemoryStore())
	ctx := context.Background()

	user, err := svc.Create(ctx, models.CreateUserRequest{Username: "ana", Password: "123456", Role: models.UserRoleSALES, Email: "ana@a.example"})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, user.ID, models.UpdateProfileRequest{Position: "Account Manager", Password: "654321"})
	require.NoError(t, err)
	assert.Equal(t, "Account Manager", updated.Position)
	assert.Equal(t, "ana@a.example", updated.Email)
	assert.True(t, utils.VerifyPassword("654321", updated.Password))

	_, err = svc.UpdateProfile(ctx, user.ID, models.UpdateProfileRequest{Password: "12"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateProfile(ctx, "missing", models.UpdateProfileRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}
