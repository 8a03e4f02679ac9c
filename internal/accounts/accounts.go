// Package accounts is the local user registry: registration, login and a
// short list of saved locations per user.
//
// This is a convenience for a single device and not a security boundary.
// Passwords are still only ever stored as bcrypt hashes.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/db"
	"github.com/swelljoe/wthrdash/internal/weather"
)

// DefaultMaxSavedLocations caps each user's saved list.
const DefaultMaxSavedLocations = 5

type User struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	PasswordHash   string             `json:"passwordHash"`
	SavedLocations []weather.Location `json:"savedLocations"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Store is the key-value persistence the registry needs. *db.DB satisfies it.
type Store interface {
	Get(key string, dst any) (bool, error)
	Set(key string, v any) error
	ActiveUserID() (string, error)
	SetActiveUserID(id string) error
	ClearActiveUser() error
}

type Options struct {
	MaxSavedLocations int
	// BcryptCost defaults to DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int
	Clock      clockwork.Clock
}

type Registry struct {
	store    Store
	hasher   passwordHasher
	maxSaved int
	clock    clockwork.Clock

	mu sync.Mutex
}

func NewRegistry(store Store, opts Options) *Registry {
	if opts.MaxSavedLocations <= 0 {
		opts.MaxSavedLocations = DefaultMaxSavedLocations
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = DefaultCost
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		store:    store,
		hasher:   passwordHasher{cost: opts.BcryptCost},
		maxSaved: opts.MaxSavedLocations,
		clock:    opts.Clock,
	}
}

func (r *Registry) load() ([]User, error) {
	var users []User
	if _, err := r.store.Get(db.KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	return users, nil
}

func (r *Registry) save(users []User) error {
	if err := r.store.Set(db.KeyUsers, users); err != nil {
		return fmt.Errorf("saving users: %w", err)
	}
	return nil
}

func indexOf(users []User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

// Register creates a user. Email comparison is case-sensitive.
func (r *Registry) Register(name, email, password, confirm string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	switch {
	case name == "":
		return nil, apperror.ValidationFailed("name", "Name is required")
	case email == "":
		return nil, apperror.ValidationFailed("email", "Email is required")
	case password == "":
		return nil, apperror.ValidationFailed("password", "Password is required")
	case password != confirm:
		return nil, apperror.ValidationFailed("confirm", "Passwords do not match")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return nil, apperror.ValidationFailed("email", "An account with this email already exists")
		}
	}

	hash, err := r.hasher.hash(password)
	if err != nil {
		return nil, err
	}

	u := User{
		ID:             xid.New().String(),
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		SavedLocations: []weather.Location{},
		CreatedAt:      r.clock.Now().UTC(),
	}
	if err := r.save(append(users, u)); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login checks the credentials and makes the user active.
func (r *Registry) Login(email, password string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	invalid := apperror.ValidationFailed("email", "Invalid email or password")
	for i := range users {
		if users[i].Email != strings.TrimSpace(email) {
			continue
		}
		if err := r.hasher.verify(users[i].PasswordHash, password); err != nil {
			if errors.Is(err, errInvalidPassword) {
				return nil, invalid
			}
			return nil, err
		}
		if err := r.store.SetActiveUserID(users[i].ID); err != nil {
			return nil, fmt.Errorf("setting active user: %w", err)
		}
		u := users[i]
		return &u, nil
	}
	return nil, invalid
}

func (r *Registry) Logout() error {
	return r.store.ClearActiveUser()
}

// Current returns the active user, or nil when nobody is logged in.
func (r *Registry) Current() (*User, error) {
	id, err := r.store.ActiveUserID()
	if err != nil || id == "" {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(users, id)
	if i < 0 {
		return nil, nil
	}
	u := users[i]
	return &u, nil
}

// SaveLocation appends loc to the user's saved list. Duplicates and lists
// already at the limit are rejected and leave the list unchanged.
func (r *Registry) SaveLocation(userID string, loc weather.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}
	i := indexOf(users, userID)
	if i < 0 {
		return apperror.NotFound("user", userID)
	}

	saved := users[i].SavedLocations
	for _, s := range saved {
		if s.Equal(loc) {
			return apperror.ValidationFailed("location", "Location already saved")
		}
	}
	if len(saved) >= r.maxSaved {
		return apperror.ValidationFailed("location", fmt.Sprintf("You can save up to %d locations", r.maxSaved))
	}

	users[i].SavedLocations = append(saved, loc)
	return r.save(users)
}

func (r *Registry) RemoveLocation(userID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}
	i := indexOf(users, userID)
	if i < 0 {
		return apperror.NotFound("user", userID)
	}

	saved := users[i].SavedLocations
	if index < 0 || index >= len(saved) {
		return apperror.ValidationFailed("index", fmt.Sprintf("no saved location at index %d", index))
	}
	users[i].SavedLocations = append(saved[:index:index], saved[index+1:]...)
	return r.save(users)
}

func (r *Registry) Locations(userID string) ([]weather.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(users, userID)
	if i < 0 {
		return nil, apperror.NotFound("user", userID)
	}
	return users[i].SavedLocations, nil
}
