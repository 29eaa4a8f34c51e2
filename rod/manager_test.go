//go:build integration

package rod_test

import (
	"testing"

	"github.com/fwojciec/folio/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserManager_RecyclesBrowserAfterMaxPages(t *testing.T) {
	t.Parallel()

	manager, err := rod.NewBrowserManager(rod.WithMaxPages(2))
	require.NoError(t, err)
	defer manager.Close()

	firstPID := manager.LauncherPID()
	for range 2 {
		_, release, err := manager.Page()
		require.NoError(t, err)
		release()
	}
	assert.Equal(t, 2, manager.Served())

	_, release, err := manager.Page()
	require.NoError(t, err)
	defer release()

	assert.NotEqual(t, firstPID, manager.LauncherPID())
	assert.Equal(t, 1, manager.Served())
}

func TestBrowserManager_KeepsBrowserWhilePagesAreOpen(t *testing.T) {
	t.Parallel()

	manager, err := rod.NewBrowserManager(rod.WithMaxPages(1))
	require.NoError(t, err)
	defer manager.Close()

	firstPID := manager.LauncherPID()
	_, releaseFirst, err := manager.Page()
	require.NoError(t, err)
	defer releaseFirst()

	_, releaseSecond, err := manager.Page()
	require.NoError(t, err)
	defer releaseSecond()

	assert.Equal(t, firstPID, manager.LauncherPID())
}
