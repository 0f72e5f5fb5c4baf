package customers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Service exposes profile operations for authenticated customers.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

// AuditPort records profile mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService wires the customer service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Profile fetches the customer owning the session.
func (s *Service) Profile(ctx context.Context, customerID string) (*Customer, error) {
	return s.repo.GetByID(ctx, customerID)
}

// UpdateProfile applies the provided fields after validating each one. A
// changed email must not collide with another customer's.
func (s *Service) UpdateProfile(ctx context.Context, customerID string, in ProfileUpdate) (*Customer, error) {
	current, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if in.FirstName != nil {
		if err := ValidateName("first name", *in.FirstName); err != nil {
			return nil, err
		}
		updates["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		if err := ValidateName("last name", *in.LastName); err != nil {
			return nil, err
		}
		updates["last_name"] = *in.LastName
	}
	if in.Email != nil {
		if err := ValidateEmail(*in.Email); err != nil {
			return nil, err
		}
		if *in.Email != current.Email {
			taken, err := s.repo.EmailExists(ctx, *in.Email)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("%w: email already registered", shared.ErrConflict)
			}
		}
		updates["email"] = *in.Email
	}
	if in.Phone != nil {
		if err := ValidatePhone(*in.Phone); err != nil {
			return nil, err
		}
		updates["phone"] = *in.Phone
	}

	if len(updates) == 0 {
		return current, nil
	}

	if err := s.repo.UpdateProfile(ctx, customerID, updates); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		fields := make([]string, 0, len(updates))
		for k := range updates {
			fields = append(fields, k)
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  customerID,
			Action:   "customer.profile_updated",
			Entity:   "customer",
			EntityID: customerID,
			Meta:     map[string]any{"fields": fields},
		})
	}

	s.logger.Info("profile updated", slog.String("customer_id", customerID))
	return updated, nil
}
