package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
	require.Zero(t, u.PendingWeight)
}

func TestUser_Reset(t *testing.T) {
	u := NewUser(1, 10)
	u.SetState(StateProcessing)
	u.PendingWeight = 152.3

	u.Reset()
	require.Equal(t, StateMainMenu, u.State)
	require.Zero(t, u.PendingWeight)
}
