package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// CustomerStore is the slice of customer persistence the auth flows need.
type CustomerStore interface {
	Create(ctx context.Context, c customers.Customer) (customers.Customer, error)
	GetByID(ctx context.Context, id string) (*customers.Customer, error)
	GetByUsername(ctx context.Context, username string) (*customers.Customer, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// SessionStore records login sessions for the audit trail.
type SessionStore interface {
	CreateSession(ctx context.Context, id, customerID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// AuditPort records auth events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts login outcomes.
type MetricsPort interface {
	ObserveLogin(result string)
}

// Service wraps authentication business rules.
type Service struct {
	customers CustomerStore
	sessions  SessionStore
	audit     AuditPort
	metrics   MetricsPort
	logger    *slog.Logger
}

// NewService constructs a new Service. Sessions, audit and metrics may be
// nil; the related side effects are then skipped.
func NewService(store CustomerStore, sessions SessionStore, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		customers: store,
		sessions:  sessions,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
	}
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Username  string
	Password  string
}

// Register validates the input, hashes the password and creates the
// customer. Field checks run before uniqueness checks so a malformed
// request never touches the database.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*customers.Customer, error) {
	if err := customers.ValidateName("first name", in.FirstName); err != nil {
		return nil, err
	}
	if err := customers.ValidateName("last name", in.LastName); err != nil {
		return nil, err
	}
	if err := customers.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := customers.ValidatePhone(in.Phone); err != nil {
		return nil, err
	}
	if err := customers.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return nil, err
	}

	taken, err := s.customers.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: username already exists", shared.ErrConflict)
	}
	taken, err = s.customers.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email already registered", shared.ErrConflict)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.customers.Create(ctx, customers.Customer{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Username:     in.Username,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  created.ID,
			Action:   "customer.registered",
			Entity:   "customer",
			EntityID: created.ID,
			Meta:     map[string]any{"username": created.Username},
		})
	}
	s.logger.Info("customer registered", slog.String("customer_id", created.ID), slog.String("username", created.Username))
	return &created, nil
}

// Authenticate validates username/password credentials. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*customers.Customer, error) {
	customer, err := s.customers.GetByUsername(ctx, username)
	if err != nil {
		s.observeLogin("failure")
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)); err != nil {
		s.observeLogin("failure")
		return nil, shared.ErrInvalidCredentials
	}
	s.observeLogin("success")
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  customer.ID,
			Action:   "customer.login",
			Entity:   "customer",
			EntityID: customer.ID,
		})
	}
	return customer, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, customerID, current, next string) error {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	if err := ValidatePasswordStrength(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.customers.UpdatePasswordHash(ctx, customerID, hash); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  customerID,
			Action:   "customer.password_changed",
			Entity:   "customer",
			EntityID: customerID,
		})
	}
	s.logger.Info("password changed", slog.String("customer_id", customerID))
	return nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, customerID string, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.CreateSession(ctx, id, customerID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.DeleteSession(ctx, id)
}

func (s *Service) observeLogin(result string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(result)
	}
}
