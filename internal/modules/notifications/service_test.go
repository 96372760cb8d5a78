package notifications

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.InitSchema())
	return repo
}

func TestNotifySurvivesWithoutHub(t *testing.T) {
	svc := NewService(setupTestRepo(t), nil, zerolog.Nop())

	// No hub attached: the write must still land
	svc.Notify("alice", CategoryTrade, "Order executed", "Bought 1 AAPL at $100.00")

	result, err := svc.List("alice", 20, 0)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, 1, result.UnreadCount)
	assert.Equal(t, CategoryTrade, result.Notifications[0].Category)
	assert.NotEmpty(t, result.Notifications[0].ID)
	assert.False(t, result.Notifications[0].IsRead)
}

func TestHubPublishDelivery(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	svc := NewService(setupTestRepo(t), hub, zerolog.Nop())

	sub := hub.subscribe("alice")
	defer hub.unsubscribe("alice", sub)

	svc.Notify("alice", CategoryAlert, "Price alert", "AAPL crossed $200")
	svc.Notify("bob", CategoryAlert, "Price alert", "not for alice")

	select {
	case n := <-sub.ch:
		assert.Equal(t, "alice", n.UserID)
		assert.Equal(t, "Price alert", n.Title)
	default:
		t.Fatal("expected a delivered notification")
	}

	// Bob's notification must not reach alice's subscriber
	select {
	case n := <-sub.ch:
		t.Fatalf("unexpected delivery: %+v", n)
	default:
	}
}

func TestMarkRead(t *testing.T) {
	svc := NewService(setupTestRepo(t), nil, zerolog.Nop())

	svc.Notify("alice", CategorySystem, "Welcome", "Account ready")
	svc.Notify("alice", CategorySystem, "Heads up", "Market closed today")

	result, err := svc.List("alice", 20, 0)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 2)
	assert.Equal(t, 2, result.UnreadCount)

	// Mark one
	found, err := svc.MarkRead("alice", result.Notifications[0].ID)
	require.NoError(t, err)
	assert.True(t, found)

	// Wrong user cannot mark someone else's notification
	found, err = svc.MarkRead("bob", result.Notifications[1].ID)
	require.NoError(t, err)
	assert.False(t, found)

	result, err = svc.List("alice", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnreadCount)

	// Mark all
	updated, err := svc.MarkAllRead("alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	result, err = svc.List("alice", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnreadCount)
}
