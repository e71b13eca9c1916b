package notify

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type displayed struct {
	title, body, iconPath string
}

type fakeDisplay struct {
	mu    sync.Mutex
	calls []displayed
	err   error
}

func (d *fakeDisplay) fn(appName, title, body, iconPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, displayed{title: title, body: body, iconPath: iconPath})
	return nil
}

func (d *fakeDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func TestShowAndClose(t *testing.T) {
	display := &fakeDisplay{}
	m := NewManager("ChatWrap", nil, display.fn, nil)

	id := m.Show("New message", "hello", "", "")
	require.NotEmpty(t, id)
	assert.Equal(t, 1, m.ActiveCount())
	assert.Equal(t, 1, display.count())

	m.Close(id)
	assert.Equal(t, 0, m.ActiveCount())

	// Closing again is a no-op.
	m.Close(id)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestShowTruncatesLongText(t *testing.T) {
	display := &fakeDisplay{}
	m := NewManager("ChatWrap", nil, display.fn, nil)

	id := m.Show(strings.Repeat("t", 500), strings.Repeat("b", 5000), "", "")
	require.NotEmpty(t, id)

	display.mu.Lock()
	defer display.mu.Unlock()
	assert.Len(t, display.calls[0].title, maxTitleRunes)
	assert.Len(t, display.calls[0].body, maxBodyRunes)
}

func TestShowRejectsBeyondBound(t *testing.T) {
	display := &fakeDisplay{}
	m := NewManager("ChatWrap", nil, display.fn, nil)

	for i := 0; i < MaxActive; i++ {
		require.NotEmpty(t, m.Show("t", "b", "", ""))
	}
	assert.Empty(t, m.Show("t", "b", "", ""))
	assert.Equal(t, MaxActive, m.ActiveCount())
}

func TestDisplayFailureLeavesNoEntry(t *testing.T) {
	display := &fakeDisplay{err: errors.New("no notification daemon")}
	m := NewManager("ChatWrap", nil, display.fn, nil)

	assert.Empty(t, m.Show("t", "b", "", ""))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestClickFiresCallbackOnce(t *testing.T) {
	display := &fakeDisplay{}
	var clicks []string
	m := NewManager("ChatWrap", nil, display.fn, func(id, url string) {
		clicks = append(clicks, id+"|"+url)
	})

	id := m.Show("t", "b", "", "https://chat.example.com/c/42")
	require.NotEmpty(t, id)

	m.Click(id)
	m.Click(id)
	require.Len(t, clicks, 1)
	assert.Equal(t, id+"|https://chat.example.com/c/42", clicks[0])
	assert.Equal(t, 0, m.ActiveCount())
}

func TestDisallowedClickURLDropped(t *testing.T) {
	display := &fakeDisplay{}
	var gotURL string
	m := NewManager("ChatWrap", nil, display.fn, func(id, url string) { gotURL = url })

	id := m.Show("t", "b", "", "file:///etc/passwd")
	require.NotEmpty(t, id)
	m.Click(id)
	assert.Empty(t, gotURL)
}

func TestIconValidation(t *testing.T) {
	okPayload := base64.StdEncoding.EncodeToString([]byte("imagedata"))
	tooBig := base64.StdEncoding.EncodeToString(make([]byte, MaxIconBytes+1))

	tests := []struct {
		name    string
		dataURI string
		wantErr bool
	}{
		{name: "png", dataURI: "data:image/png;base64," + okPayload, wantErr: false},
		{name: "jpeg", dataURI: "data:image/jpeg;base64," + okPayload, wantErr: false},
		{name: "svg not allowed", dataURI: "data:image/svg+xml;base64," + okPayload, wantErr: true},
		{name: "not a data uri", dataURI: "https://example.com/icon.png", wantErr: true},
		{name: "bad base64", dataURI: "data:image/png;base64,!!!", wantErr: true},
		{name: "too big", dataURI: "data:image/png;base64," + tooBig, wantErr: true},
	}

	m := NewManager("ChatWrap", nil, (&fakeDisplay{}).fn, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := m.writeIcon(tt.dataURI)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadIcon)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, path)
			}
		})
	}
}

func TestInvalidIconStillShowsNotification(t *testing.T) {
	display := &fakeDisplay{}
	m := NewManager("ChatWrap", nil, display.fn, nil)

	id := m.Show("t", "b", "data:image/svg+xml;base64,AAAA", "")
	require.NotEmpty(t, id)

	display.mu.Lock()
	defer display.mu.Unlock()
	assert.Empty(t, display.calls[0].iconPath)
}

func TestCloseManyAndCloseAll(t *testing.T) {
	display := &fakeDisplay{}
	m := NewManager("ChatWrap", nil, display.fn, nil)

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		ids = append(ids, m.Show("t", "b", "", ""))
	}

	m.CloseMany(ids[:2])
	assert.Equal(t, 2, m.ActiveCount())

	m.CloseAll()
	assert.Equal(t, 0, m.ActiveCount())
}

func TestOnShownCallback(t *testing.T) {
	display := &fakeDisplay{}
	m := NewManager("ChatWrap", nil, display.fn, nil)

	var shown []string
	m.SetOnShown(func(id string) { shown = append(shown, id) })

	id := m.Show("t", "b", "", "")
	require.NotEmpty(t, id)
	assert.Equal(t, []string{id}, shown)

	// A rejected show never reports shown.
	display.mu.Lock()
	display.err = errors.New("boom")
	display.mu.Unlock()
	assert.Empty(t, m.Show("t", "b", "", ""))
	assert.Len(t, shown, 1)
}
