package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swelljoe/wthrdash/internal/alerts"
	"github.com/swelljoe/wthrdash/internal/weather"
)

func TestBoard_LoadingThenSnapshot(t *testing.T) {
	b := NewBoard(BoardOptions{})
	london := weather.Location{Name: "London", Country: "GB"}

	b.ShowLoading(london)
	st := b.State()
	assert.True(t, st.Loading)
	assert.Equal(t, &london, st.Location)
	assert.Nil(t, st.Snapshot)

	snap := &weather.Snapshot{Location: london}
	b.ShowSnapshot(snap)
	st = b.State()
	assert.False(t, st.Loading)
	assert.Same(t, snap, st.Snapshot)
}

func TestBoard_LateSnapshotForPreviousLocationIgnored(t *testing.T) {
	b := NewBoard(BoardOptions{})
	london := weather.Location{Name: "London", Country: "GB", Lat: 51.5, Lon: -0.13}
	paris := weather.Location{Name: "Paris", Country: "FR", Lat: 48.85, Lon: 2.35}

	b.ShowLoading(london)
	b.ShowLoading(paris)
	b.ShowSnapshot(&weather.Snapshot{Location: london})

	st := b.State()
	assert.True(t, st.Loading)
	assert.Equal(t, &paris, st.Location)
	assert.Nil(t, st.Snapshot)

	current := &weather.Snapshot{Location: paris}
	b.ShowSnapshot(current)
	b.ShowSnapshot(&weather.Snapshot{Location: london})

	st = b.State()
	assert.False(t, st.Loading)
	assert.Same(t, current, st.Snapshot)
	assert.Equal(t, &paris, st.Location)
}

func TestBoard_ErrorHidesAfterDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBoard(BoardOptions{ErrorDuration: 5 * time.Second, Clock: clock})

	b.ShowError("Weather service error: 503 Service Unavailable")
	assert.Equal(t, "Weather service error: 503 Service Unavailable", b.State().Error)
	assert.False(t, b.State().Loading)

	clock.Advance(4 * time.Second)
	assert.NotEmpty(t, b.State().Error)

	clock.Advance(time.Second)
	assert.Empty(t, b.State().Error)
}

func TestBoard_SnapshotClearsError(t *testing.T) {
	b := NewBoard(BoardOptions{})
	b.ShowError("boom")
	b.ShowSnapshot(&weather.Snapshot{})
	assert.Empty(t, b.State().Error)
}

func TestBoard_ShowAlertsReplacesSnapshotAlerts(t *testing.T) {
	b := NewBoard(BoardOptions{})
	london := weather.Location{Name: "London", Country: "GB"}
	first := &weather.Snapshot{Location: london}
	b.ShowSnapshot(first)

	alert := weather.Alert{Event: "Flood Warning"}
	b.ShowAlerts(london, []weather.Alert{alert})
	assert.Equal(t, []weather.Alert{alert}, b.State().Snapshot.Alerts)
	assert.Empty(t, first.Alerts)

	// Alerts for another place are ignored.
	b.ShowAlerts(weather.Location{Name: "Paris"}, nil)
	assert.Len(t, b.State().Snapshot.Alerts, 1)
}

func TestBoard_Notifications(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBoard(BoardOptions{Clock: clock, Permission: alerts.PermissionGranted})
	ctx := context.Background()

	require.NoError(t, b.Notify(ctx, alerts.Notification{Title: "sticky", Tag: "a", RequireInteraction: true}))
	require.NoError(t, b.Notify(ctx, alerts.Notification{Title: "brief", Tag: "b", AutoDismiss: 10 * time.Second}))
	require.Len(t, b.Notifications(), 2)

	clock.Advance(10 * time.Second)
	notes := b.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "sticky", notes[0].Title)
	assert.True(t, notes[0].ExpiresAt.IsZero())

	assert.True(t, b.Dismiss(notes[0].ID))
	assert.False(t, b.Dismiss(notes[0].ID))
	assert.Empty(t, b.Notifications())
}

func TestBoard_NotifySameTagReplaces(t *testing.T) {
	b := NewBoard(BoardOptions{})
	ctx := context.Background()

	require.NoError(t, b.Notify(ctx, alerts.Notification{Title: "v1", Tag: "x", RequireInteraction: true}))
	require.NoError(t, b.Notify(ctx, alerts.Notification{Title: "v2", Tag: "x", RequireInteraction: true}))

	notes := b.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "v2", notes[0].Title)
}

func TestBoard_Permission(t *testing.T) {
	b := NewBoard(BoardOptions{})
	assert.Equal(t, alerts.PermissionDefault, b.Permission())

	b.SetPermission(alerts.PermissionGranted)
	assert.Equal(t, alerts.PermissionGranted, b.Permission())
}
