package billingcustomers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

type customerCreator interface {
	CreateCustomer(ctx context.Context, req genie.CreateCustomerRequest) (*genie.Customer, error)
}

type profileStore interface {
	FindProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	SetGenieCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

// EnsureRequest carries the signup details used to open a billing account.
type EnsureRequest struct {
	UserID    uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Address   types.Address
}

type Result struct {
	CustomerID string
	Outcome    types.Outcome
	Backfill   types.Outcome
}

// Bridge opens a Genie customer for a storefront user.
type Bridge struct {
	gateway  customerCreator
	profiles profileStore
	logg     *logger.Logger
}

func NewBridge(gateway customerCreator, profiles profileStore, logg *logger.Logger) (*Bridge, error) {
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "genie client required")
	}
	if profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile store required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Bridge{gateway: gateway, profiles: profiles, logg: logg}, nil
}

// EnsureCustomer never fails the caller. A profile that already carries a
// customer id is returned as is without calling the gateway.
func (b *Bridge) EnsureCustomer(ctx context.Context, req EnsureRequest) Result {
	ctx = b.logg.WithUserID(ctx, req.UserID.String())

	if profile, err := b.profiles.FindProfile(ctx, req.UserID); err == nil && profile.GenieCustomerID != nil && *profile.GenieCustomerID != "" {
		return Result{
			CustomerID: *profile.GenieCustomerID,
			Outcome:    types.Skipped("billing customer already linked"),
			Backfill:   types.Skipped("billing customer already linked"),
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{Outcome: types.Failed(pkgerrors.Wrap(pkgerrors.CodeCancelled, err, "operation cancelled"))}
	}

	customer, err := b.gateway.CreateCustomer(ctx, customerPayload(req))
	if err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "reason", err.Error()), "genie customer creation failed, continuing without billing account")
		return Result{Outcome: types.Failed(err), Backfill: types.Skipped("no customer id")}
	}
	ctx = b.logg.WithField(ctx, "genie_customer_id", customer.ID)

	result := Result{CustomerID: customer.ID, Outcome: types.Succeeded(), Backfill: types.Succeeded()}
	if err := b.profiles.SetGenieCustomerID(ctx, req.UserID, customer.ID); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "reason", err.Error()), "genie customer id backfill failed")
		result.Backfill = types.Failed(err)
	}
	b.logg.Info(ctx, "billing customer linked")
	return result
}

func customerPayload(req EnsureRequest) genie.CreateCustomerRequest {
	addr := req.Address.WithDefaults()
	line2 := ""
	if addr.Line2 != nil {
		line2 = *addr.Line2
	}
	return genie.CreateCustomerRequest{
		Name:        strings.TrimSpace(req.FirstName + " " + req.LastName),
		Email:       req.Email,
		PhoneNumber: req.Phone,
		Currency:    string(enums.CurrencyLKR),
		BillingAddress: genie.BillingAddress{
			AddressLine1: addr.Line1,
			AddressLine2: line2,
			City:         addr.City,
			PostalCode:   addr.PostalCode,
			Country:      addr.Country,
		},
		ExternalRef: req.UserID.String(),
	}
}
