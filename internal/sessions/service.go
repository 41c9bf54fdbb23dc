package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const tokenBytes = 32

var ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "session not found or expired")

// Snapshot is the checkout state a session keeps between steps.
type Snapshot struct {
	Customer types.CustomerInfo
	Address  types.Address
	Cart     types.Cart
	Quiz     datatypes.JSON
	Step     enums.CheckoutStep
}

type Created struct {
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Service manages guest checkout sessions.
type Service struct {
	repo *Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewService(repo *Repository, ttl time.Duration) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session repository required")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session ttl must be positive")
	}
	return &Service{repo: repo, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Create opens a new active session, optionally already bound to a user.
func (s *Service) Create(ctx context.Context, userID *uuid.UUID) (*models.CheckoutSession, error) {
	token, err := newToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to generate session token")
	}
	session := &models.CheckoutSession{
		ID:           uuid.New(),
		SessionToken: token,
		Status:       enums.CheckoutSessionActive,
		UserID:       userID,
		CurrentStep:  enums.StepAccount,
		ExpiresAt:    s.now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create checkout session")
	}
	return session, nil
}

// Resolve returns the active session for token or ErrNotFound.
func (s *Service) Resolve(ctx context.Context, token string) (*models.CheckoutSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}
	session, err := s.repo.FindActiveByToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load checkout session")
	}
	return session, nil
}

// BindUser attaches the account created during signup. A session already bound
// to another user is rejected.
func (s *Service) BindUser(ctx context.Context, session *models.CheckoutSession, userID uuid.UUID) error {
	if session.UserID != nil && *session.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "session belongs to another user")
	}
	n, err := s.repo.Update(ctx, nil, session.ID, map[string]any{"user_id": userID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to bind session")
	}
	if n == 0 {
		return ErrNotFound
	}
	session.UserID = &userID
	return nil
}

// Save stores the checkout snapshot on the session.
func (s *Service) Save(ctx context.Context, sessionID uuid.UUID, snap Snapshot) error {
	customer, err := json.Marshal(snap.Customer)
	if err != nil {
		return err
	}
	address, err := json.Marshal(snap.Address)
	if err != nil {
		return err
	}
	cart, err := json.Marshal(snap.Cart)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"customer_info":    datatypes.JSON(customer),
		"shipping_address": datatypes.JSON(address),
		"cart_items":       datatypes.JSON(cart),
		"current_step":     snap.Step,
	}
	if len(snap.Quiz) > 0 {
		updates["quiz_responses"] = snap.Quiz
	}
	n, err := s.repo.Update(ctx, nil, sessionID, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save checkout session")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Advance(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, step enums.CheckoutStep) error {
	n, err := s.repo.Update(ctx, tx, sessionID, map[string]any{"current_step": step})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to advance checkout session")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete closes the session once its order exists.
func (s *Service) Complete(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) error {
	_, err := s.repo.Update(ctx, tx, sessionID, map[string]any{
		"status":       enums.CheckoutSessionCompleted,
		"current_step": enums.StepCompleted,
	})
	return err
}

// FindForUser is the webhook lookup; expiry is not enforced because the
// payment was started while the session was live.
func (s *Service) FindForUser(ctx context.Context, tx *gorm.DB, sessionID, userID uuid.UUID) (*models.CheckoutSession, error) {
	return s.repo.FindForUser(ctx, tx, sessionID, userID)
}

// Decode unpacks the snapshot stored on a session.
func Decode(session *models.CheckoutSession) (Snapshot, error) {
	snap := Snapshot{Quiz: session.QuizResponses, Step: session.CurrentStep}
	if len(session.CustomerInfo) > 0 {
		if err := json.Unmarshal(session.CustomerInfo, &snap.Customer); err != nil {
			return Snapshot{}, err
		}
	}
	if len(session.ShippingAddress) > 0 {
		if err := json.Unmarshal(session.ShippingAddress, &snap.Address); err != nil {
			return Snapshot{}, err
		}
	}
	if len(session.CartItems) > 0 {
		if err := json.Unmarshal(session.CartItems, &snap.Cart); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
