package emed

import (
	"time"

	"github.com/vitalcart/storefront-backend/pkg/types"
)

// Demographics is the patient identity sent when a patient must be created.
type Demographics struct {
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Sex         string
	Phone       string
	Email       string
	Address     types.Address
}

type PatientResult struct {
	PatientID    string
	IsNewPatient bool
}

// Photo is an intake image ready for transport.
type Photo struct {
	QuestionCode string
	FileName     string
	ContentType  string
	Data         []byte
}

type Answer struct {
	QuestionCode string
	Value        string
}

type Question struct {
	Code string
	Text string
	Type string
}

type Submission struct {
	QuestionnaireID string
	Answers         []Answer
	Questions       []Question
}

type CartItem struct {
	ProductID            string
	Name                 string
	Quantity             int
	PrescriptionRequired bool
}
