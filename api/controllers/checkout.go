package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalcart/storefront-backend/api/middleware"
	"github.com/vitalcart/storefront-backend/api/responses"
	"github.com/vitalcart/storefront-backend/api/validators"
	"github.com/vitalcart/storefront-backend/internal/checkout"
	"github.com/vitalcart/storefront-backend/internal/sessions"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
)

type SessionOpener interface {
	Create(ctx context.Context, userID *uuid.UUID) (*models.CheckoutSession, error)
}

type placeOrderRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
}

// Checkout runs the checkout orchestrator for guests and signed-in customers.
// The response is the orchestrator result itself, or {"success":false,"error":...}.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteFailure(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var form checkout.Form
		if err := validators.DecodeJSON(w, r, &form); err != nil {
			responses.WriteFailure(r.Context(), logg, w, err)
			return
		}
		form.SessionToken = strings.TrimSpace(form.SessionToken)
		if err := form.ParseQuiz(); err != nil {
			responses.WriteFailure(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), checkout.Input{
			Form:   form,
			UserID: middleware.UserUUIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteFailure(r.Context(), logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, result)
	}
}

// CreateCheckoutSession opens a session the storefront carries between checkout steps.
func CreateCheckoutSession(svc SessionOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}

		session, err := svc.Create(r.Context(), middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, sessions.Created{
			SessionToken: session.SessionToken,
			ExpiresAt:    session.ExpiresAt,
		})
	}
}

// PlaceOrder materializes the order for a pay-upfront session of the caller.
func PlaceOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body placeOrderRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), *userID, strings.TrimSpace(body.SessionToken))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
