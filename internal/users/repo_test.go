package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalcart/storefront-backend/internal/repo/repotest"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, repo *Repository, email, nic string) *CreateProfileDTO {
	t.Helper()
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	dob := time.Date(1992, 1, 15, 0, 0, 0, 0, time.UTC)
	profile := CreateProfileDTO{
		UserID:          user.ID,
		FirstName:       "Kamala",
		LastName:        "Silva",
		DateOfBirth:     &dob,
		NIC:             &nic,
		Sex:             enums.SexFemale,
		Address:         types.Address{Line1: "4 Temple Rd", City: "Kandy"},
		AgreedToTerms:   true,
		AgreedToPrivacy: true,
	}
	_, err = repo.CreateProfile(ctx, profile)
	require.NoError(t, err)
	return &profile
}

func TestRepositoryCreateAndLookup(t *testing.T) {
	repo := NewRepository(repotest.NewDB(t))
	ctx := context.Background()
	profile := seedUser(t, repo, "kamala@example.com", "199212345678")

	user, err := repo.FindByEmail(ctx, "kamala@example.com")
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, user.ID)
	assert.Equal(t, enums.UserRoleCustomer, user.Role)

	stored, err := repo.FindProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kandy", stored.Address.City)
	assert.Nil(t, stored.EMedPatientID)

	exists, err := repo.NICExists(ctx, "199212345678")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.EmailExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepositoryDuplicateEmailIsUniqueViolation(t *testing.T) {
	repo := NewRepository(repotest.NewDB(t))
	seedUser(t, repo, "dup@example.com", "1")

	_, err := repo.Create(context.Background(), CreateUserDTO{Email: "dup@example.com", PasswordHash: "x"})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestSetPointersOnlyFillEmptyValues(t *testing.T) {
	repo := NewRepository(repotest.NewDB(t))
	ctx := context.Background()
	profile := seedUser(t, repo, "pointer@example.com", "2")

	require.NoError(t, repo.SetEMedPatientID(ctx, profile.UserID, "pat-1"))
	require.NoError(t, repo.SetEMedPatientID(ctx, profile.UserID, "pat-2"))
	require.NoError(t, repo.SetGenieCustomerID(ctx, profile.UserID, "cus-1"))

	stored, err := repo.FindProfile(ctx, profile.UserID)
	require.NoError(t, err)
	require.NotNil(t, stored.EMedPatientID)
	assert.Equal(t, "pat-1", *stored.EMedPatientID)
	require.NotNil(t, stored.GenieCustomerID)
	assert.Equal(t, "cus-1", *stored.GenieCustomerID)

	byCustomer, err := repo.FindProfileByGenieCustomerID(ctx, "cus-1")
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, byCustomer.UserID)

	missing := CreateProfileDTO{}.UserID
	assert.ErrorIs(t, repo.SetGenieCustomerID(ctx, missing, "cus-x"), gorm.ErrRecordNotFound)
}

func TestDeleteRemovesIdentityAndProfile(t *testing.T) {
	repo := NewRepository(repotest.NewDB(t))
	ctx := context.Background()
	profile := seedUser(t, repo, "gone@example.com", "3")

	require.NoError(t, repo.Delete(ctx, profile.UserID))

	_, err := repo.FindByID(ctx, profile.UserID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindProfile(ctx, profile.UserID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
