package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

// User is the authentication identity created at signup.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// UserProfile is one-to-one with User. The two foreign identity pointers are
// filled in best-effort after signup and may be absent.
type UserProfile struct {
	UserID            uuid.UUID     `gorm:"column:user_id;type:uuid;primaryKey"`
	FirstName         string        `gorm:"column:first_name;not null"`
	LastName          string        `gorm:"column:last_name;not null"`
	DateOfBirth       *time.Time    `gorm:"column:date_of_birth;type:date"`
	Phone             *string       `gorm:"column:phone"`
	NIC               *string       `gorm:"column:nic;uniqueIndex"`
	Sex               enums.Sex     `gorm:"column:sex;type:text;not null;default:'unknown'"`
	Address           types.Address `gorm:"column:address;type:jsonb"`
	AgreedToTerms     bool          `gorm:"column:agreed_to_terms;not null;default:false"`
	AgreedToPrivacy   bool          `gorm:"column:agreed_to_privacy;not null;default:false"`
	AgreedToMarketing bool          `gorm:"column:agreed_to_marketing;not null;default:false"`
	EMedPatientID     *string       `gorm:"column:emed_patient_id"`
	GenieCustomerID   *string       `gorm:"column:genie_customer_id"`
	CreatedAt         time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins first and last name.
func (p UserProfile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
