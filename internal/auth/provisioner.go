package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/users"
	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/security"
)

// Undo reverses a completed step. Callers run it when a later fatal step fails.
type Undo func(ctx context.Context) error

type accountStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	NICExists(ctx context.Context, nic string) (bool, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	CreateProfile(ctx context.Context, dto users.CreateProfileDTO) (*models.UserProfile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Provisioner creates the identity and profile for a guest checkout.
type Provisioner struct {
	accounts    accountStore
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

type ProvisionerParams struct {
	Accounts       accountStore
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

func NewProvisioner(params ProvisionerParams) (*Provisioner, error) {
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account store required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Provisioner{
		accounts:    params.Accounts,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

// Provision returns the caller's identity, creating one for guests. The returned Undo is nil
// when nothing was created.
func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) (ProvisionResult, Undo, error) {
	if req.CurrentUserID != nil && *req.CurrentUserID != uuid.Nil {
		return ProvisionResult{UserID: *req.CurrentUserID}, nil, nil
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return ProvisionResult{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := security.CheckPasswordStrength(req.Password); err != nil {
		return ProvisionResult{}, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	nic := normalizeNIC(req.NIC)
	if nic != nil {
		taken, err := p.accounts.NICExists(ctx, *nic)
		if err != nil {
			return ProvisionResult{}, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check nic")
		}
		if taken {
			return ProvisionResult{}, nil, pkgerrors.New(pkgerrors.CodeConflict, "nic already registered")
		}
	}

	taken, err := p.accounts.EmailExists(ctx, email)
	if err != nil {
		return ProvisionResult{}, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
	}
	if taken {
		return ProvisionResult{}, nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(req.Password, p.passwordCfg)
	if err != nil {
		return ProvisionResult{}, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := p.accounts.Create(ctx, users.CreateUserDTO{Email: email, PasswordHash: hash})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ProvisionResult{}, nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return ProvisionResult{}, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
	}

	userID := user.ID
	undo := func(ctx context.Context) error {
		if err := p.accounts.Delete(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete provisioned account")
		}
		return nil
	}

	ctx = p.logg.WithUserID(ctx, userID.String())
	result := ProvisionResult{UserID: userID, IsNewUser: true}

	_, err = p.accounts.CreateProfile(ctx, users.CreateProfileDTO{
		UserID:            userID,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		DateOfBirth:       req.DateOfBirth,
		Phone:             req.Phone,
		NIC:               nic,
		Sex:               req.Sex,
		Address:           req.Address,
		AgreedToTerms:     req.AgreedToTerms,
		AgreedToPrivacy:   req.AgreedToPrivacy,
		AgreedToMarketing: !req.MarketingOptOut,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") && nic != nil {
			err = errors.Join(err, errors.New("nic already registered"))
		}
		p.logg.Error(ctx, "profile creation failed", err)
		result.ProfileErr = err
		return result, undo, nil
	}
	result.ProfileCreated = true
	p.logg.Info(ctx, "account provisioned")
	return result, undo, nil
}

func normalizeNIC(nic *string) *string {
	if nic == nil {
		return nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(*nic))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
