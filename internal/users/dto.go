package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ProfileDTO exposes the profile fields the storefront renders.
type ProfileDTO struct {
	UserID            uuid.UUID     `json:"user_id"`
	FirstName         string        `json:"first_name"`
	LastName          string        `json:"last_name"`
	Phone             *string       `json:"phone,omitempty"`
	Sex               enums.Sex     `json:"sex"`
	Address           types.Address `json:"address"`
	AgreedToMarketing bool          `json:"agreed_to_marketing"`
	HasPatientRecord  bool          `json:"has_patient_record"`
	HasBillingAccount bool          `json:"has_billing_account"`
}

type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Role         enums.UserRole
}

type CreateProfileDTO struct {
	UserID            uuid.UUID
	FirstName         string
	LastName          string
	DateOfBirth       *time.Time
	Phone             *string
	NIC               *string
	Sex               enums.Sex
	Address           types.Address
	AgreedToTerms     bool
	AgreedToPrivacy   bool
	AgreedToMarketing bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func ProfileFromModel(p *models.UserProfile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		UserID:            p.UserID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Phone:             p.Phone,
		Sex:               p.Sex,
		Address:           p.Address,
		AgreedToMarketing: p.AgreedToMarketing,
		HasPatientRecord:  p.EMedPatientID != nil && *p.EMedPatientID != "",
		HasBillingAccount: p.GenieCustomerID != nil && *p.GenieCustomerID != "",
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleCustomer
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Role:         role,
		IsActive:     true,
	}
}

func (c CreateProfileDTO) ToModel() *models.UserProfile {
	sex := c.Sex
	if sex == "" {
		sex = enums.SexUnknown
	}
	return &models.UserProfile{
		UserID:            c.UserID,
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		DateOfBirth:       c.DateOfBirth,
		Phone:             c.Phone,
		NIC:               c.NIC,
		Sex:               sex,
		Address:           c.Address,
		AgreedToTerms:     c.AgreedToTerms,
		AgreedToPrivacy:   c.AgreedToPrivacy,
		AgreedToMarketing: c.AgreedToMarketing,
	}
}
