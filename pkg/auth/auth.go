// Package auth implements the storefront's mock account store.
//
// Passwords are kept in plaintext in their own blob, keyed by email. This
// is a demo credential store, not a security boundary.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/internal/blob"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

var (
	ErrDuplicateUser   = errors.New("user already exists with this email")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// Role separates shoppers from administrators.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is an account record.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether u may use the admin operations.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Validate rejects records missing identity fields or with unknown roles.
func (u User) Validate() error {
	switch {
	case u.ID == "":
		return errors.New("user id is required")
	case strings.TrimSpace(u.Email) == "":
		return fmt.Errorf("user %s: email is required", u.ID)
	case u.Role != RoleCustomer && u.Role != RoleAdmin:
		return fmt.Errorf("user %s: unknown role %q", u.ID, u.Role)
	}
	return nil
}

// AdminCredentials is the account seeded into an empty user list.
type AdminCredentials struct {
	ID       string
	Email    string
	Password string
	Name     string
}

// DefaultAdmin returns the built-in admin account.
func DefaultAdmin() AdminCredentials {
	return AdminCredentials{
		ID:       "admin-1",
		Email:    "admin@luxecommerce.com",
		Password: "admin123",
		Name:     "Admin User",
	}
}

// Options carry the collaborators of a Store. A nil Admin disables the
// bootstrap account.
type Options struct {
	Clock     clock.Clock
	Logger    core.Logger
	Telemetry core.Telemetry
	NewID     func() string
	Admin     *AdminCredentials
}

// Store holds the users, their passwords and the signed-in user of one
// profile.
type Store struct {
	mu        sync.Mutex
	users     []User
	passwords map[string]string
	current   *User

	usersBlob     *blob.Blob[[]User]
	passwordsBlob *blob.Blob[map[string]string]
	currentBlob   *blob.Blob[*User]

	admin  *AdminCredentials
	clock  clock.Clock
	newID  func() string
	logger core.Logger
	tel    core.Telemetry
}

// Open loads the auth state persisted in mem and seeds the admin account
// if no users exist.
func Open(ctx context.Context, mem core.Memory, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Telemetry == nil {
		opts.Telemetry = &core.NoOpTelemetry{}
	}
	log := core.ComponentOf(opts.Logger, "auth")

	s := &Store{
		usersBlob: blob.New(mem, core.StorageKeyUsers, func() []User { return []User{} },
			blob.WithValidator(blob.Each(User.Validate)),
			blob.WithLogger[[]User](log),
		),
		passwordsBlob: blob.New(mem, core.StorageKeyPasswords, func() map[string]string { return map[string]string{} },
			blob.WithLogger[map[string]string](log),
		),
		currentBlob: blob.New(mem, core.StorageKeyCurrentUser, func() *User { return nil },
			blob.WithValidator(validateCurrent),
			blob.WithLogger[*User](log),
		),
		admin:  opts.Admin,
		clock:  opts.Clock,
		newID:  opts.NewID,
		logger: log,
		tel:    opts.Telemetry,
	}

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func validateCurrent(u *User) (*User, []error) {
	if u == nil {
		return nil, nil
	}
	if err := u.Validate(); err != nil {
		return nil, []error{err}
	}
	return u, nil
}

// Reload re-reads all three blobs and re-runs the admin bootstrap.
func (s *Store) Reload(ctx context.Context) error {
	users, err := s.usersBlob.Load(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	passwords, err := s.passwordsBlob.Load(ctx)
	if err != nil {
		return fmt.Errorf("load passwords: %w", err)
	}
	if passwords == nil {
		passwords = map[string]string{}
	}
	current, err := s.currentBlob.Load(ctx)
	if err != nil {
		return fmt.Errorf("load current user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.passwords = passwords
	s.current = current
	return s.ensureAdminLocked(ctx)
}

// ensureAdminLocked seeds the admin account when the user list is empty.
// The admin password is merged into the existing password map.
func (s *Store) ensureAdminLocked(ctx context.Context) error {
	if s.admin == nil || len(s.users) > 0 {
		return nil
	}

	admin := User{
		ID:        s.admin.ID,
		Email:     s.admin.Email,
		Name:      s.admin.Name,
		Role:      RoleAdmin,
		CreatedAt: s.clock.Now(),
	}
	if admin.ID == "" {
		admin.ID = s.newID()
	}
	users := []User{admin}
	passwords := clonePasswords(s.passwords)
	passwords[admin.Email] = s.admin.Password

	if err := s.usersBlob.Save(ctx, users); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	if err := s.passwordsBlob.Save(ctx, passwords); err != nil {
		return fmt.Errorf("seed admin password: %w", err)
	}
	s.users = users
	s.passwords = passwords

	s.logger.InfoWithContext(ctx, "Seeded bootstrap admin account", map[string]interface{}{
		"user_id": admin.ID,
		"email":   admin.Email,
	})
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func (s *Store) findLocked(email string) (int, bool) {
	for i, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) passwordLocked(email string) (string, bool) {
	if pw, ok := s.passwords[email]; ok {
		return pw, true
	}
	for k, pw := range s.passwords {
		if strings.EqualFold(k, email) {
			return pw, true
		}
	}
	return "", false
}

// Register creates a customer account. It does not sign the user in.
func (s *Store) Register(ctx context.Context, email, password, name string) (user User, err error) {
	ctx, done := telemetry.Track(ctx, s.tel, "auth.Register")
	defer done(&err)

	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return User{}, fmt.Errorf("email, password and name are required: %w", core.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureAdminLocked(ctx); err != nil {
		return User{}, err
	}
	if _, exists := s.findLocked(email); exists {
		return User{}, ErrDuplicateUser
	}

	user = User{
		ID:        s.newID(),
		Email:     email,
		Name:      name,
		Role:      RoleCustomer,
		CreatedAt: s.clock.Now(),
	}
	users := append(slices.Clone(s.users), user)
	passwords := clonePasswords(s.passwords)
	passwords[email] = password

	if err := s.usersBlob.Save(ctx, users); err != nil {
		return User{}, fmt.Errorf("save users: %w", err)
	}
	if err := s.passwordsBlob.Save(ctx, passwords); err != nil {
		return User{}, fmt.Errorf("save passwords: %w", err)
	}
	s.users = users
	s.passwords = passwords

	s.logger.InfoWithContext(ctx, "User registered", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, nil
}

// Login checks the credentials and makes the user current.
func (s *Store) Login(ctx context.Context, email, password string) (user User, err error) {
	ctx, done := telemetry.Track(ctx, s.tel, "auth.Login")
	defer done(&err)

	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureAdminLocked(ctx); err != nil {
		return User{}, err
	}
	i, ok := s.findLocked(email)
	if !ok {
		return User{}, ErrUserNotFound
	}
	user = s.users[i]
	if pw, ok := s.passwordLocked(user.Email); !ok || pw != password {
		s.logger.WarnWithContext(ctx, "Login rejected", map[string]interface{}{
			"user_id": user.ID,
			"reason":  "invalid_password",
		})
		return User{}, ErrInvalidPassword
	}

	if err := s.currentBlob.Save(ctx, &user); err != nil {
		return User{}, fmt.Errorf("save current user: %w", err)
	}
	s.current = &user

	s.logger.InfoWithContext(ctx, "User logged in", map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	return user, nil
}

// Logout clears the current user.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.currentBlob.Delete(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.current = nil
	return nil
}

// CurrentUser returns the signed-in user, if any.
func (s *Store) CurrentUser() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return User{}, false
	}
	return *s.current, true
}

// Users returns every account.
func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users)
}

// CustomerCount counts accounts with the customer role.
func (s *Store) CustomerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.Role == RoleCustomer {
			n++
		}
	}
	return n
}

func clonePasswords(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
