package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type stubCustomerStore struct {
	byUsername map[string]*customers.Customer
	byID       map[string]*customers.Customer
	created    []customers.Customer
}

func newStubCustomerStore() *stubCustomerStore {
	return &stubCustomerStore{
		byUsername: make(map[string]*customers.Customer),
		byID:       make(map[string]*customers.Customer),
	}
}

func (s *stubCustomerStore) add(c customers.Customer) {
	stored := c
	s.byUsername[stored.Username] = &stored
	s.byID[stored.ID] = &stored
}

func (s *stubCustomerStore) Create(ctx context.Context, c customers.Customer) (customers.Customer, error) {
	c.ID = "generated-id"
	c.CreatedAt = time.Now()
	s.created = append(s.created, c)
	s.add(c)
	return c, nil
}

func (s *stubCustomerStore) GetByID(ctx context.Context, id string) (*customers.Customer, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (s *stubCustomerStore) GetByUsername(ctx context.Context, username string) (*customers.Customer, error) {
	c, ok := s.byUsername[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (s *stubCustomerStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, ok := s.byUsername[username]
	return ok, nil
}

func (s *stubCustomerStore) EmailExists(ctx context.Context, email string) (bool, error) {
	for _, c := range s.byUsername {
		if c.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubCustomerStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	c, ok := s.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.PasswordHash = hash
	return nil
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		FirstName: "Alice",
		LastName:  "Smith",
		Email:     "alice@example.com",
		Phone:     "1234567890",
		Username:  "alice",
		Password:  "Str0ng!Pass",
	}
}

func TestRegisterCreatesCustomer(t *testing.T) {
	store := newStubCustomerStore()
	svc := NewService(store, nil, nil, nil, nil)

	created, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Len(t, store.created, 1)
	require.NotEqual(t, "Str0ng!Pass", store.created[0].PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.created[0].PasswordHash), []byte("Str0ng!Pass")))
}

func TestRegisterValidation(t *testing.T) {
	store := newStubCustomerStore()
	svc := NewService(store, nil, nil, nil, nil)
	ctx := context.Background()

	in := validRegisterInput()
	in.FirstName = "A"
	_, err := svc.Register(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validRegisterInput()
	in.Email = "nope"
	_, err = svc.Register(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validRegisterInput()
	in.Phone = "123"
	_, err = svc.Register(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validRegisterInput()
	in.Password = "weakpass"
	_, err = svc.Register(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	require.Empty(t, store.created)
}

func TestRegisterDuplicateChecks(t *testing.T) {
	store := newStubCustomerStore()
	store.add(customers.Customer{ID: "c1", Username: "alice", Email: "alice@example.com"})
	svc := NewService(store, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterInput())
	require.ErrorIs(t, err, shared.ErrConflict)

	in := validRegisterInput()
	in.Username = "alice2"
	_, err = svc.Register(ctx, in)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.MinCost)
	require.NoError(t, err)

	store := newStubCustomerStore()
	store.add(customers.Customer{ID: "c1", Username: "alice", PasswordHash: string(hashed)})
	svc := NewService(store, nil, nil, nil, nil)
	ctx := context.Background()

	customer, err := svc.Authenticate(ctx, "alice", "Str0ng!Pass")
	require.NoError(t, err)
	require.Equal(t, "c1", customer.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "Str0ng!Pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.MinCost)
	require.NoError(t, err)

	store := newStubCustomerStore()
	store.add(customers.Customer{ID: "c1", Username: "alice", PasswordHash: string(hashed)})
	svc := NewService(store, nil, nil, nil, nil)
	ctx := context.Background()

	err = svc.ChangePassword(ctx, "c1", "wrong", "N3w!Secret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, "c1", "Str0ng!Pass", "tooweak")
	require.ErrorIs(t, err, shared.ErrValidation)

	err = svc.ChangePassword(ctx, "c1", "Str0ng!Pass", "N3w!Secret")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.byID["c1"].PasswordHash), []byte("N3w!Secret")))
}

func TestPasswordStrength(t *testing.T) {
	require.NoError(t, ValidatePasswordStrength("Str0ng!Pass"))
	require.ErrorIs(t, ValidatePasswordStrength("Sh0rt!"), shared.ErrValidation)
	require.ErrorIs(t, ValidatePasswordStrength("alllower1!"), shared.ErrValidation)
	require.ErrorIs(t, ValidatePasswordStrength("ALLUPPER1!"), shared.ErrValidation)
	require.ErrorIs(t, ValidatePasswordStrength("NoDigits!!"), shared.ErrValidation)
	require.ErrorIs(t, ValidatePasswordStrength("NoSpecial1"), shared.ErrValidation)
}
