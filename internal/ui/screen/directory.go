package screen

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/registry"
	"github.com/whaleshi/b/internal/ui"
	"github.com/whaleshi/b/internal/ui/component"
	"github.com/whaleshi/b/internal/ui/router"
	"github.com/whaleshi/b/internal/ui/style"
)

// DirectoryScreen lists launchpad tokens under New, Trending and Launched tabs.
type DirectoryScreen struct {
	deps   ui.Deps
	width  int
	height int

	table   *component.Table
	helpBar *component.HelpBar
	search  textinput.Model

	view    int // index into registry.Views
	records []model.TokenRecord
	names   map[common.Address]model.TokenMetadata

	loaded    bool
	updatedAt time.Time
	failures  int
	lastErr   error
}

func NewDirectoryScreen(deps ui.Deps) *DirectoryScreen {
	search := textinput.New()
	search.Placeholder = "filter by address"
	search.Prompt = "/ "
	search.CharLimit = 42

	table := component.NewTable().
		SetColumns([]component.TableColumn{
			{Header: "#", Width: 5, Align: lipgloss.Right},
			{Header: "Symbol", Width: 10},
			{Header: "Name", Width: 0},
			{Header: "Address", Width: 15},
			{Header: "Progress", Width: 9, Align: lipgloss.Right},
			{Header: "Status", Width: 9},
		}).
		SetEmptyText("Loading tokens…")

	return &DirectoryScreen{
		deps:    deps,
		table:   table,
		helpBar: component.NewHelpBar(),
		search:  search,
		names:   make(map[common.Address]model.TokenMetadata),
	}
}

// Init reloads rows; it also runs when the screen is returned to.
func (s *DirectoryScreen) Init() tea.Cmd {
	s.reload()
	return nil
}

func (s *DirectoryScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.table.SetSize(width, height-7) // header, tabs, search, status, help
	s.helpBar.SetWidth(width)
}

// ActiveView returns the active tab.
func (s *DirectoryScreen) ActiveView() registry.View {
	return registry.Views[s.view]
}

// Selected returns the highlighted token.
func (s *DirectoryScreen) Selected() (model.TokenRecord, bool) {
	i := s.table.GetSelectedRow()
	if i < 0 || i >= len(s.records) {
		return model.TokenRecord{}, false
	}
	return s.records[i], true
}

func (s *DirectoryScreen) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.SnapshotMsg:
		s.applySnapshot(msg)
		return s, nil

	case tea.KeyMsg:
		if s.search.Focused() {
			return s, s.updateSearch(msg)
		}
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *DirectoryScreen) applySnapshot(msg ui.SnapshotMsg) {
	s.lastErr = msg.Err
	if msg.Snapshot == nil {
		return
	}
	for addr, md := range msg.Names {
		s.names[addr] = md
	}
	s.loaded = true
	s.updatedAt = msg.Snapshot.FetchedAt
	s.failures = len(msg.Snapshot.Failures)
	s.reload()
}

func (s *DirectoryScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	keys := s.deps.Keys
	switch {
	case key.Matches(msg, keys.Up):
		s.table.MoveUp()
	case key.Matches(msg, keys.Down):
		s.table.MoveDown()
	case key.Matches(msg, keys.NextTab):
		s.view = (s.view + 1) % len(registry.Views)
		s.table.SetSelectedRow(0)
		s.reload()
	case key.Matches(msg, keys.PrevTab):
		s.view = (s.view + len(registry.Views) - 1) % len(registry.Views)
		s.table.SetSelectedRow(0)
		s.reload()
	case key.Matches(msg, keys.Search):
		return s.search.Focus()
	case key.Matches(msg, keys.Back):
		if s.search.Value() != "" {
			s.search.SetValue("")
			s.reload()
		}
	case key.Matches(msg, keys.Open):
		if rec, ok := s.Selected(); ok {
			return router.Push(NewTokenScreen(s.deps, rec.Address))
		}
	}
	return nil
}

// updateSearch filters on every keystroke; enter and esc leave the field.
func (s *DirectoryScreen) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		s.search.Blur()
		return nil
	case tea.KeyEsc:
		s.search.Blur()
		s.search.SetValue("")
		s.reload()
		return nil
	}
	var cmd tea.Cmd
	s.search, cmd = s.search.Update(msg)
	s.table.SetSelectedRow(0)
	s.reload()
	return cmd
}

func (s *DirectoryScreen) reload() {
	s.records = s.deps.Services.Tokens(s.ActiveView(), s.search.Value())

	rows := make([]component.TableRow, 0, len(s.records))
	for _, rec := range s.records {
		md, ok := s.names[rec.Address]
		if !ok {
			md = model.PlaceholderMetadata(rec.Address)
		}
		status, st := "bonding", style.BondingStyle
		if rec.Launched {
			status, st = "launched", style.LaunchedStyle
		}
		st = st.Padding(0, 1)
		rows = append(rows, component.TableRow{
			Data: []string{
				fmt.Sprint(rec.Index),
				md.Symbol,
				md.Name,
				model.ShortAddress(rec.Address),
				rec.Progress.StringFixed(2) + "%",
				status,
			},
			Style: &st,
		})
	}
	s.table.SetRows(rows)
	switch {
	case !s.loaded:
		s.table.SetEmptyText("Loading tokens…")
	case s.search.Value() != "":
		s.table.SetEmptyText("No token matches " + s.search.Value())
	default:
		s.table.SetEmptyText("No tokens in " + s.ActiveView().String())
	}
}

func (s *DirectoryScreen) View() string {
	var b strings.Builder

	b.WriteString(style.HeaderStyle.Render("🚀 Launchpad"))
	b.WriteString("\n")

	tabs := make([]string, 0, len(registry.Views))
	for i, v := range registry.Views {
		if i == s.view {
			tabs = append(tabs, style.ActiveTabStyle.Render(v.String()))
		} else {
			tabs = append(tabs, style.TabStyle.Render(v.String()))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")

	if s.search.Focused() || s.search.Value() != "" {
		b.WriteString(s.search.View())
	}
	b.WriteString("\n")

	b.WriteString(s.table.View())
	b.WriteString("\n")
	b.WriteString(s.statusLine())
	b.WriteString("\n")
	b.WriteString(s.helpBar.View(s.deps.Keys.DirectoryHelp()))
	return b.String()
}

func (s *DirectoryScreen) statusLine() string {
	var parts []string
	if s.loaded {
		parts = append(parts, style.MutedStyle.Render(fmt.Sprintf("%d tokens · updated %s",
			s.table.GetRowCount(), s.updatedAt.Format("15:04:05"))))
	}
	if s.failures > 0 {
		parts = append(parts, style.WarningStyle.Render(fmt.Sprintf("⚠ %d tokens could not be read", s.failures)))
	}
	if s.lastErr != nil {
		parts = append(parts, style.ErrorStyle.Render(dex.UserMessage(s.lastErr)))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, "  "))
}
