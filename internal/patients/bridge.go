package patients

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/questionnaires"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/emed"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/gorm"
)

type patientDirectory interface {
	FindOrCreatePatient(ctx context.Context, demo emed.Demographics, nic, email string) (emed.PatientResult, error)
}

type profileStore interface {
	FindProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	SetEMedPatientID(ctx context.Context, userID uuid.UUID, patientID string) error
}

type questionnaireRelay interface {
	Submit(ctx context.Context, req questionnaires.SubmitRequest) types.Outcome
}

// EnsureRequest identifies the user and carries the demographics collected at checkout.
type EnsureRequest struct {
	UserID                uuid.UUID
	Demographics          emed.Demographics
	NIC                   string
	RequiresQuestionnaire bool
	VerticalSlug          string
	Answers               []questionnaires.Answer
	Cart                  []emed.CartItem
}

type Result struct {
	PatientID    string
	IsNewPatient bool
	Backfill     types.Outcome
	Relay        types.Outcome
}

// Bridge links a storefront user to a patient record in the clinical system.
type Bridge struct {
	directory patientDirectory
	profiles  profileStore
	relay     questionnaireRelay
	logg      *logger.Logger
}

func NewBridge(directory patientDirectory, profiles profileStore, relay questionnaireRelay, logg *logger.Logger) (*Bridge, error) {
	if directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "patient directory required")
	}
	if profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile store required")
	}
	if relay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "questionnaire relay required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Bridge{directory: directory, profiles: profiles, relay: relay, logg: logg}, nil
}

// EnsurePatient returns the user's patient id, creating the patient when the
// profile has none. Only a failed find-or-create is returned as an error.
func (b *Bridge) EnsurePatient(ctx context.Context, req EnsureRequest) (Result, error) {
	if req.UserID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	ctx = b.logg.WithUserID(ctx, req.UserID.String())

	profile, err := b.profiles.FindProfile(ctx, req.UserID)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		b.logg.Warn(ctx, "profile missing, creating patient from checkout details")
	default:
		b.logg.Warn(b.logg.WithField(ctx, "reason", err.Error()), "profile lookup failed, creating patient from checkout details")
	}

	if profile != nil && profile.EMedPatientID != nil && *profile.EMedPatientID != "" {
		result := Result{
			PatientID: *profile.EMedPatientID,
			Backfill:  types.Skipped("patient id already linked"),
			Relay:     types.Skipped("questionnaire not required"),
		}
		if req.RequiresQuestionnaire {
			result.Relay = b.relayQuestionnaire(ctx, result.PatientID, req)
		}
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeCancelled, err, "operation cancelled")
	}

	demo, nic := demographicsFor(profile, req)
	patient, err := b.directory.FindOrCreatePatient(ctx, demo, nic, demo.Email)
	if err != nil {
		b.logg.Error(ctx, "find or create patient failed", err)
		return Result{}, err
	}
	ctx = b.logg.WithField(ctx, "patient_id", patient.PatientID)

	result := Result{
		PatientID:    patient.PatientID,
		IsNewPatient: patient.IsNewPatient,
		Backfill:     types.Succeeded(),
		Relay:        types.Skipped("questionnaire not required"),
	}
	if err := b.profiles.SetEMedPatientID(ctx, req.UserID, patient.PatientID); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "reason", err.Error()), "patient id backfill failed")
		result.Backfill = types.Failed(err)
	}
	if req.RequiresQuestionnaire {
		result.Relay = b.relayQuestionnaire(ctx, patient.PatientID, req)
	}

	b.logg.Info(b.logg.WithField(ctx, "is_new_patient", patient.IsNewPatient), "patient linked")
	return result, nil
}

func (b *Bridge) relayQuestionnaire(ctx context.Context, patientID string, req EnsureRequest) types.Outcome {
	outcome := b.relay.Submit(ctx, questionnaires.SubmitRequest{
		PatientID:    patientID,
		VerticalSlug: req.VerticalSlug,
		Answers:      req.Answers,
		Cart:         req.Cart,
	})
	if !outcome.OK() {
		b.logg.Warn(b.logg.WithField(ctx, "relay_status", outcome.Status), "questionnaire relay did not succeed")
	}
	return outcome
}

// demographicsFor prefers what the profile already stores over the form.
func demographicsFor(profile *models.UserProfile, req EnsureRequest) (emed.Demographics, string) {
	demo := req.Demographics
	nic := strings.TrimSpace(req.NIC)
	if profile == nil {
		return demo, nic
	}
	if profile.FirstName != "" {
		demo.FirstName = profile.FirstName
		demo.LastName = profile.LastName
	}
	if profile.DateOfBirth != nil {
		demo.DateOfBirth = profile.DateOfBirth
	}
	if profile.Phone != nil && *profile.Phone != "" {
		demo.Phone = *profile.Phone
	}
	if profile.Sex != "" {
		demo.Sex = string(profile.Sex)
	}
	if !profile.Address.IsZero() {
		demo.Address = profile.Address
	}
	if profile.NIC != nil && *profile.NIC != "" {
		nic = *profile.NIC
	}
	return demo, nic
}

// CartItems converts checkout lines into the clinical system's cart shape.
func CartItems(cart types.Cart) []emed.CartItem {
	out := make([]emed.CartItem, 0, len(cart))
	for _, item := range cart {
		out = append(out, emed.CartItem{
			ProductID:            item.ProductID,
			Name:                 item.ProductName,
			Quantity:             item.Quantity,
			PrescriptionRequired: item.PrescriptionRequired,
		})
	}
	return out
}
