package screen

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/registry"
	"github.com/whaleshi/b/internal/ui"
	"github.com/whaleshi/b/internal/ui/router"
)

func newDirectory(t *testing.T, h *harness) *DirectoryScreen {
	t.Helper()
	s := NewDirectoryScreen(h.deps)
	s.SetSize(120, 30)
	s.Init()
	return s
}

func snapshot(h *harness) ui.SnapshotMsg {
	h.svc.published = true
	return ui.SnapshotMsg{
		Snapshot: &registry.Snapshot{Records: h.svc.records, Count: len(h.svc.records), FetchedAt: time.Now()},
		Names:    map[common.Address]model.TokenMetadata{tokenA: {Name: "Alpha", Symbol: "ALP"}},
	}
}

func TestDirectoryScreen_SnapshotFillsRows(t *testing.T) {
	h := newHarness(t)
	s := newDirectory(t, h)
	assert.Contains(t, s.View(), "Loading tokens")

	s.Update(snapshot(h))
	view := s.View()
	assert.Contains(t, view, "ALP")
	assert.Contains(t, view, "1 tokens")

	rec, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, tokenA, rec.Address)
}

func TestDirectoryScreen_Tabs(t *testing.T) {
	h := newHarness(t)
	s := newDirectory(t, h)
	s.Update(snapshot(h))

	s.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, registry.ViewTrending, s.ActiveView())
	assert.Equal(t, registry.ViewTrending, h.svc.lastView)

	s.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, registry.ViewLaunched, s.ActiveView())
	rec, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, tokenB, rec.Address)

	s.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	s.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	s.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, registry.ViewLaunched, s.ActiveView())
}

func TestDirectoryScreen_Search(t *testing.T) {
	h := newHarness(t)
	s := newDirectory(t, h)
	s.Update(snapshot(h))

	s.Update(runes("/"))
	require.True(t, s.search.Focused())

	s.Update(runes("a1"))
	assert.Equal(t, "a1", h.svc.lastQuery)

	s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, s.search.Focused())
	assert.Equal(t, "", h.svc.lastQuery)
}

func TestDirectoryScreen_OpenPushesTokenScreen(t *testing.T) {
	h := newHarness(t)
	s := newDirectory(t, h)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "nothing to open before the first snapshot")

	s.Update(snapshot(h))
	_, cmd = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	push, ok := cmd().(router.PushMsg)
	require.True(t, ok)
	ts, ok := push.Screen.(*TokenScreen)
	require.True(t, ok)
	assert.Equal(t, tokenA, ts.Token())
}
