package enums

import "fmt"

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleSupport  UserRole = "support"
)

var validUserRoles = []UserRole{
	UserRoleCustomer,
	UserRoleSupport,
}

func (u UserRole) String() string {
	return string(u)
}

func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}

// Sex as recorded on the patient profile.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexOther   Sex = "other"
	SexUnknown Sex = "unknown"
)

var validSexes = []Sex{
	SexMale,
	SexFemale,
	SexOther,
	SexUnknown,
}

func (s Sex) String() string {
	return string(s)
}

func (s Sex) IsValid() bool {
	for _, candidate := range validSexes {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseSex(value string) (Sex, error) {
	for _, candidate := range validSexes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sex %q", value)
}
