package accounts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/db"
	"github.com/swelljoe/wthrdash/internal/weather"
)

func newTestRegistry(t *testing.T) (*Registry, *db.DB) {
	t.Helper()
	store, err := db.Open(":memory:", db.DefaultPrefix, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := NewRegistry(store, Options{
		MaxSavedLocations: 3,
		BcryptCost:        bcrypt.MinCost,
		Clock:             clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	return r, store
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, field, appErr.Field)
}

func TestRegister(t *testing.T) {
	r, _ := newTestRegistry(t)

	u, err := r.Register("Ada", "ada@example.com", "hunter22", "hunter22")
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Empty(t, u.SavedLocations)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), u.CreatedAt)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"), "password is stored as a bcrypt hash")
	assert.NotContains(t, u.PasswordHash, "hunter22")
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name                           string
		user, email, password, confirm string
		field                          string
	}{
		{"empty name", " ", "a@b.c", "pw", "pw", "name"},
		{"empty email", "A", "", "pw", "pw", "email"},
		{"empty password", "A", "a@b.c", "", "", "password"},
		{"mismatch", "A", "a@b.c", "pw", "pw2", "confirm"},
		{"too long", "A", "a@b.c", strings.Repeat("x", 73), strings.Repeat("x", 73), "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t)
			_, err := r.Register(tt.user, tt.email, tt.password, tt.confirm)
			requireValidation(t, err, tt.field)
		})
	}
}

func TestRegister_DuplicateEmailIsCaseSensitive(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register("Ada", "ada@example.com", "pw", "pw")
	require.NoError(t, err)

	_, err = r.Register("Ada again", "ada@example.com", "pw", "pw")
	requireValidation(t, err, "email")

	_, err = r.Register("Other Ada", "ADA@example.com", "pw", "pw")
	assert.NoError(t, err)
}

func TestLoginLogout(t *testing.T) {
	r, store := newTestRegistry(t)
	registered, err := r.Register("Ada", "ada@example.com", "pw", "pw")
	require.NoError(t, err)

	current, err := r.Current()
	require.NoError(t, err)
	assert.Nil(t, current, "registering does not log in")

	u, err := r.Login("ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	id, err := store.ActiveUserID()
	require.NoError(t, err)
	assert.Equal(t, registered.ID, id)

	current, err = r.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Ada", current.Name)

	require.NoError(t, r.Logout())
	current, err = r.Current()
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Register("Ada", "ada@example.com", "pw", "pw")
	require.NoError(t, err)

	_, err = r.Login("ada@example.com", "wrong")
	requireValidation(t, err, "email")

	_, err = r.Login("nobody@example.com", "pw")
	requireValidation(t, err, "email")
}

func TestSaveLocation(t *testing.T) {
	r, _ := newTestRegistry(t)
	u, err := r.Register("Ada", "ada@example.com", "pw", "pw")
	require.NoError(t, err)

	london := weather.Location{Name: "London", Country: "GB", Lat: 51.5, Lon: -0.12}
	require.NoError(t, r.SaveLocation(u.ID, london))

	err = r.SaveLocation(u.ID, london)
	requireValidation(t, err, "location")

	locs, err := r.Locations(u.ID)
	require.NoError(t, err)
	assert.Equal(t, []weather.Location{london}, locs)
}

func TestSaveLocation_LimitLeavesListUnchanged(t *testing.T) {
	r, _ := newTestRegistry(t)
	u, err := r.Register("Ada", "ada@example.com", "pw", "pw")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.SaveLocation(u.ID, weather.Location{Name: fmt.Sprintf("City %d", i), Lat: float64(i)}))
	}

	err = r.SaveLocation(u.ID, weather.Location{Name: "One too many", Lat: 10})
	requireValidation(t, err, "location")
	assert.Contains(t, err.Error(), "3")

	locs, err := r.Locations(u.ID)
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Equal(t, "City 2", locs[2].Name)
}

func TestRemoveLocation(t *testing.T) {
	r, _ := newTestRegistry(t)
	u, err := r.Register("Ada", "ada@example.com", "pw", "pw")
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, r.SaveLocation(u.ID, weather.Location{Name: name}))
	}

	require.NoError(t, r.RemoveLocation(u.ID, 1))
	locs, err := r.Locations(u.ID)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "A", locs[0].Name)
	assert.Equal(t, "C", locs[1].Name)

	err = r.RemoveLocation(u.ID, 5)
	requireValidation(t, err, "index")
}

func TestUnknownUser(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.SaveLocation("missing", weather.Location{Name: "X"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = r.Locations("missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCurrent_StaleActiveUser(t *testing.T) {
	r, store := newTestRegistry(t)
	require.NoError(t, store.SetActiveUserID("deleted-user"))

	u, err := r.Current()
	require.NoError(t, err)
	assert.Nil(t, u)
}
