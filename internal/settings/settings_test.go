package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestGetMissingFileIsEmpty(t *testing.T) {
	store := newStore(t)
	assert.Equal(t, Settings{}, store.Get())
}

func TestApplyRoundTrip(t *testing.T) {
	store := newStore(t)

	url := "https://chat.example.com"
	theme := ThemeDark
	sound := "ping"
	require.NoError(t, store.Apply(Patch{ServerURL: &url, Theme: &theme, NotificationSound: &sound}))

	got := store.Get()
	assert.Equal(t, url, got.ServerURL)
	assert.Equal(t, ThemeDark, got.Theme)
	assert.Equal(t, "ping", got.NotificationSound)
}

func TestApplyPartialPatchPreservesOtherKeys(t *testing.T) {
	store := newStore(t)

	url := "https://chat.example.com"
	require.NoError(t, store.Apply(Patch{ServerURL: &url}))

	theme := ThemeLight
	require.NoError(t, store.Apply(Patch{Theme: &theme}))

	got := store.Get()
	assert.Equal(t, url, got.ServerURL)
	assert.Equal(t, ThemeLight, got.Theme)
}

func TestApplyRejectsUnknownTheme(t *testing.T) {
	store := newStore(t)
	theme := Theme("sepia")
	assert.Error(t, store.Apply(Patch{Theme: &theme}))
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))
	assert.Equal(t, Settings{}, store.Get())
}

func TestStoredInvalidServerURLCleared(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"serverUrl":"ftp://example.com"}`), 0o600))
	assert.Equal(t, "", store.Get().ServerURL)
}

func TestSetServerURLValidation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https", url: "https://chat.example.com", wantErr: false},
		{name: "http", url: "http://localhost:8080", wantErr: false},
		{name: "relative", url: "/chat", wantErr: true},
		{name: "no host", url: "https://", wantErr: true},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true},
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			err := store.SetServerURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidServerURL)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.url, store.Get().ServerURL)
			}
		})
	}
}

func TestWriteIsAtomicAndLeavesNoTempFiles(t *testing.T) {
	store := newStore(t)
	url := "https://chat.example.com"
	require.NoError(t, store.SetServerURL(url))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestZoomDefaultsAndClamping(t *testing.T) {
	store := newStore(t)
	assert.Equal(t, DefaultZoom, store.Zoom())

	require.NoError(t, store.SetZoom(1.5))
	assert.Equal(t, 1.5, store.Zoom())

	require.NoError(t, store.SetZoom(99))
	assert.Equal(t, MaxZoom, store.Zoom())

	require.NoError(t, store.SetZoom(0.01))
	assert.Equal(t, MinZoom, store.Zoom())
}

func TestClampZoom(t *testing.T) {
	assert.Equal(t, DefaultZoom, ClampZoom(0))
	assert.Equal(t, MinZoom, ClampZoom(0.1))
	assert.Equal(t, MaxZoom, ClampZoom(10))
	assert.Equal(t, 2.0, ClampZoom(2.0))
}

func TestZoomCorruptFileFallsBackToDefault(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "zoom.json"), []byte("?"), 0o600))
	assert.Equal(t, DefaultZoom, store.Zoom())
}

func TestMarkFlagFirstWinsExactlyOnce(t *testing.T) {
	store := newStore(t)
	assert.False(t, store.FlagSet(FlagTrayHintShown))

	first, err := store.MarkFlag(FlagTrayHintShown)
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, store.FlagSet(FlagTrayHintShown))

	first, err = store.MarkFlag(FlagTrayHintShown)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestWatchIgnoresOwnWritesButSeesExternalEdits(t *testing.T) {
	store := newStore(t)
	changed := make(chan struct{}, 4)
	stop, err := store.Watch(func() { changed <- struct{}{} })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, store.SetServerURL("https://chat.example.com"))
	select {
	case <-changed:
		t.Fatal("the Store's own write must not fire the watcher callback")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"serverUrl":"https://edited.example.com"}`), 0o600))
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("external edit did not fire the watcher callback")
	}
	assert.Equal(t, "https://edited.example.com", store.Get().ServerURL)
}
