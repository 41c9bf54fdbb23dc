package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/users"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// ProvisionRequest is the account section of a checkout form.
// CurrentUserID is set when the caller is already signed in.
type ProvisionRequest struct {
	CurrentUserID   *uuid.UUID
	Email           string
	Password        string
	FirstName       string
	LastName        string
	DateOfBirth     *time.Time
	Phone           *string
	NIC             *string
	Sex             enums.Sex
	Address         types.Address
	AgreedToTerms   bool
	AgreedToPrivacy bool
	MarketingOptOut bool
}

// ProvisionResult reports the identity the checkout continues with.
// ProfileErr is set when the identity exists but its profile could not be written.
type ProvisionResult struct {
	UserID         uuid.UUID
	IsNewUser      bool
	ProfileCreated bool
	ProfileErr     error
}
