// Package users syncs identity-provider accounts into the local store.
// The provider pushes user.created / user.updated / user.deleted events
// over a signed webhook; deletion is soft, flipping the subscription
// status so history stays queryable.
package users

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/store"
)

// Event is one decoded webhook delivery.
type Event struct {
	Type string    `json:"type"`
	Data EventUser `json:"data"`
}

// EventUser is the provider's user object as delivered in events.
type EventUser struct {
	ID                    string          `json:"id"`
	FirstName             *string         `json:"first_name"`
	LastName              *string         `json:"last_name"`
	ImageURL              *string         `json:"image_url"`
	ProfileImageURL       *string         `json:"profile_image_url"`
	PrimaryEmailAddressID string          `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress  `json:"email_addresses"`
	PublicMetadata        json.RawMessage `json:"public_metadata"`
	CreatedAt             int64           `json:"created_at"`
	UpdatedAt             int64           `json:"updated_at"`
}

// EmailAddress is one address attached to a provider user.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// SyncResult reports how one event was applied.
type SyncResult struct {
	Status string  `json:"status"` // "success" or "ignored"
	Event  string  `json:"event"`
	UserID string  `json:"user_id,omitempty"`
	Email  *string `json:"email,omitempty"`
}

// Service applies webhook events to the user store.
type Service struct {
	repo store.UserRepo
	log  *logger.Logger
	now  func() time.Time
}

// NewService creates the user sync service.
func NewService(repo store.UserRepo, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("service", "users"),
		now:  time.Now,
	}
}

// Apply processes one verified event. Unknown event types are reported
// as ignored rather than rejected so new provider events never break
// delivery.
func (s *Service) Apply(ctx context.Context, ev *Event) (*SyncResult, error) {
	if ev.Data.ID == "" {
		return nil, &apperr.Validation{Field: "data.id", Reason: "must not be empty"}
	}

	s.log.Info("webhook event", "type", ev.Type, "user_id", ev.Data.ID)

	switch ev.Type {
	case "user.created":
		return s.applyCreated(ctx, ev)
	case "user.updated":
		return s.applyUpdated(ctx, ev)
	case "user.deleted":
		return s.applyDeleted(ctx, ev)
	default:
		return &SyncResult{Status: "ignored", Event: ev.Type, UserID: ev.Data.ID}, nil
	}
}

// Get returns a synced user, or NotFound.
func (s *Service) Get(ctx context.Context, id string) (*store.User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "user.get", Err: err}
	}
	if u == nil {
		return nil, &apperr.NotFound{Kind: "user", ID: id}
	}
	return u, nil
}

func (s *Service) applyCreated(ctx context.Context, ev *Event) (*SyncResult, error) {
	email := PrimaryEmail(ev.Data)
	now := s.now().UTC()

	u := &store.User{
		ID:                 ev.Data.ID,
		Email:              email,
		FirstName:          ev.Data.FirstName,
		LastName:           ev.Data.LastName,
		ImageURL:           imageURL(ev.Data),
		SubscriptionTier:   "free",
		SubscriptionStatus: "active",
		Metadata:           metadataJSON(ev.Data.PublicMetadata, "created_at_ms", ev.Data.CreatedAt),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "user.create", Err: err}
	}
	return &SyncResult{Status: "success", Event: ev.Type, UserID: u.ID, Email: email}, nil
}

func (s *Service) applyUpdated(ctx context.Context, ev *Event) (*SyncResult, error) {
	u, err := s.repo.Get(ctx, ev.Data.ID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "user.get", Err: err}
	}
	if u == nil {
		return nil, &apperr.NotFound{Kind: "user", ID: ev.Data.ID}
	}

	email := PrimaryEmail(ev.Data)
	u.Email = email
	u.FirstName = ev.Data.FirstName
	u.LastName = ev.Data.LastName
	u.ImageURL = imageURL(ev.Data)
	u.Metadata = metadataJSON(ev.Data.PublicMetadata, "updated_at_ms", ev.Data.UpdatedAt)
	u.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "user.update", Err: err}
	}
	return &SyncResult{Status: "success", Event: ev.Type, UserID: u.ID, Email: email}, nil
}

func (s *Service) applyDeleted(ctx context.Context, ev *Event) (*SyncResult, error) {
	if err := s.repo.MarkDeleted(ctx, ev.Data.ID); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "user.delete", Err: err}
	}
	return &SyncResult{Status: "success", Event: ev.Type, UserID: ev.Data.ID}, nil
}

// PrimaryEmail returns the address matching the primary id, falling
// back to the first address, or nil when the user has none.
func PrimaryEmail(u EventUser) *string {
	if len(u.EmailAddresses) == 0 {
		return nil
	}
	if u.PrimaryEmailAddressID != "" {
		for _, e := range u.EmailAddresses {
			if e.ID == u.PrimaryEmailAddressID {
				return &e.EmailAddress
			}
		}
	}
	return &u.EmailAddresses[0].EmailAddress
}

func imageURL(u EventUser) *string {
	if u.ProfileImageURL != nil && *u.ProfileImageURL != "" {
		return u.ProfileImageURL
	}
	return u.ImageURL
}

func metadataJSON(public json.RawMessage, stampKey string, stamp int64) datatypes.JSON {
	meta := map[string]any{stampKey: stamp}
	if len(public) > 0 {
		meta["public_metadata"] = public
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
