package customers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryRepo struct {
	byID map[string]*Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[string]*Customer)}
}

func (r *memoryRepo) add(c Customer) *Customer {
	stored := c
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.byID[stored.ID] = &stored
	return &stored
}

func (r *memoryRepo) Create(ctx context.Context, c Customer) (Customer, error) {
	return *r.add(c), nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*Customer, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepo) GetByUsername(ctx context.Context, username string) (*Customer, error) {
	for _, c := range r.byID {
		if c.Username == username {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	for _, c := range r.byID {
		if c.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	for _, c := range r.byID {
		if c.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) UpdateProfile(ctx context.Context, id string, updates map[string]any) error {
	c, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["first_name"]; ok {
		c.FirstName = v.(string)
	}
	if v, ok := updates["last_name"]; ok {
		c.LastName = v.(string)
	}
	if v, ok := updates["email"]; ok {
		c.Email = v.(string)
	}
	if v, ok := updates["phone"]; ok {
		c.Phone = v.(string)
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	c, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.PasswordHash = hash
	return nil
}

func strPtr(s string) *string { return &s }

func TestUpdateProfileAppliesFields(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Customer{ID: "c1", FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Phone: "1234567890", Username: "alice"})
	svc := NewService(repo, nil, nil)

	updated, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{
		FirstName: strPtr("Alicia"),
		Phone:     strPtr("0987654321"),
	})
	require.NoError(t, err)
	require.Equal(t, "Alicia", updated.FirstName)
	require.Equal(t, "Smith", updated.LastName)
	require.Equal(t, "0987654321", updated.Phone)
}

func TestUpdateProfileValidatesInput(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Customer{ID: "c1", FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Phone: "1234567890", Username: "alice"})
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{Email: strPtr("not-an-email")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{Phone: strPtr("12345")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{FirstName: strPtr("A")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Customer{ID: "c1", FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Phone: "1234567890", Username: "alice"})
	repo.add(Customer{ID: "c2", FirstName: "Bob", LastName: "Jones", Email: "bob@example.com", Phone: "2234567890", Username: "bob"})
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{Email: strPtr("bob@example.com")})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateProfileKeepsOwnEmail(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Customer{ID: "c1", FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Phone: "1234567890", Username: "alice"})
	svc := NewService(repo, nil, nil)

	updated, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{Email: strPtr("alice@example.com")})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", updated.Email)
}

func TestUpdateProfileUnknownCustomer(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "missing", ProfileUpdate{FirstName: strPtr("Zed")})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestValidateUsernameShapes(t *testing.T) {
	require.NoError(t, ValidateUsername("alice_01"))
	require.ErrorIs(t, ValidateUsername("ab"), shared.ErrValidation)
	require.ErrorIs(t, ValidateUsername("has space"), shared.ErrValidation)
	require.ErrorIs(t, ValidateUsername("way_too_long_username_x"), shared.ErrValidation)
}
