package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalcart/storefront-backend/api/middleware"
	"github.com/vitalcart/storefront-backend/api/responses"
	"github.com/vitalcart/storefront-backend/api/validators"
	internalpayments "github.com/vitalcart/storefront-backend/internal/payments"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
)

const maxCustomerIDLength = 64

// Service is the payment initiation surface used by the handlers.
type Service interface {
	StartConsultationPayment(ctx context.Context, userID uuid.UUID, sessionToken string) (*internalpayments.Started, error)
	StartProductPayment(ctx context.Context, userID, orderID uuid.UUID, tokenID *uuid.UUID) (*internalpayments.Started, error)
	ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]internalpayments.PaymentMethodDTO, error)
}

type consultationRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
}

type productRequest struct {
	PaymentMethodID *uuid.UUID `json:"paymentMethodId,omitempty"`
}

// StartConsultation opens the hosted payment for the consultation fees of a checkout session.
func StartConsultation(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body consultationRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		started, err := svc.StartConsultationPayment(r.Context(), userID, strings.TrimSpace(body.SessionToken))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, started)
	}
}

// StartProduct opens the product payment of an order, charging a stored card when one is named.
func StartProduct(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body productRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(w, r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		started, err := svc.StartProductPayment(r.Context(), userID, orderID, body.PaymentMethodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, started)
	}
}

// ListMethods returns the caller's stored cards.
func ListMethods(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		methods, err := svc.ListPaymentMethods(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if methods == nil {
			methods = []internalpayments.PaymentMethodDTO{}
		}
		responses.WriteSuccess(w, map[string]any{"paymentMethods": methods})
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserUUIDFromContext(r.Context())
	if userID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return *userID, nil
}

type tokenSyncer interface {
	SyncTokens(ctx context.Context, customerID string) (int, error)
}

// SyncCustomerTokens lets support pull a customer's stored cards from the gateway
// when a tokenisation notification was missed.
func SyncCustomerTokens(svc tokenSyncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		customerID, err := validators.PathString(r, "customerId", maxCustomerIDLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		added, err := svc.SyncTokens(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"added": added})
	}
}
