package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/whaleshi/b/internal/bot"
	"github.com/whaleshi/b/internal/config"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/monitor"
	"github.com/whaleshi/b/internal/ui"
	"github.com/whaleshi/b/internal/ui/component"
	"github.com/whaleshi/b/internal/ui/router"
	"github.com/whaleshi/b/internal/ui/screen"
	"github.com/whaleshi/b/internal/utils/logger"
	"github.com/whaleshi/b/internal/wallet"
)

const (
	inboxSize      = 256
	logPaneHeight  = 9
	quoteInterval  = 200 * time.Millisecond
	balanceEvery   = 500 * time.Millisecond
	logRefreshRate = 250 * time.Millisecond
)

// AppModel represents the main TUI application model
type AppModel struct {
	ctx       context.Context
	router    *router.Router
	directory *screen.DirectoryScreen
	logs      *component.LogPane
	inbox     ui.Inbox
	keys      ui.KeyMap
	width     int
	height    int
}

func NewAppModel(deps ui.Deps, logs *component.LogPane) *AppModel {
	directory := screen.NewDirectoryScreen(deps)
	return &AppModel{
		ctx:       deps.Ctx,
		router:    router.New(directory),
		directory: directory,
		logs:      logs,
		inbox:     deps.Inbox,
		keys:      deps.Keys,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.router.Init(),
		m.inbox.Listen(m.ctx),
	)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.Delivered:
		_, cmd := m.Update(msg.Msg)
		return m, tea.Batch(cmd, m.inbox.Listen(m.ctx))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ToggleLogs):
			m.logs.Toggle()
			m.layout()
			return m, nil
		}

	case ui.LogMsg:
		// LogPane перечитывает буфер при рендере
		return m, nil

	case ui.SnapshotMsg:
		// the directory keeps its names current even while a token is open
		if m.router.Current() != router.Screen(m.directory) {
			m.directory.Update(msg)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.router, cmd = m.router.Update(msg)
	return m, cmd
}

func (m *AppModel) layout() {
	m.logs.SetSize(m.width, logPaneHeight)
	m.router.SetSize(m.width, m.height-m.logs.Height())
}

func (m *AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if !m.logs.IsVisible() {
		return m.router.View()
	}
	body := lipgloss.NewStyle().Height(m.height - m.logs.Height()).Render(m.router.View())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.logs.View())
}

// Close releases every screen's watchers.
func (m *AppModel) Close() {
	m.router.Close()
}

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n   %v\n", dex.UserMessage(err), err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout принадлежит TUI: только файл и панель логов
	buf := logger.NewLogBuffer(logger.DefaultBufferSize)
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = "logs/tui.log"
	logCfg.Development = cfg.DebugLogging
	logCfg.Quiet = true
	paneLevel := zapcore.InfoLevel
	if cfg.DebugLogging {
		paneLevel = zapcore.DebugLevel
	}
	log, err := logger.New(logCfg, logger.NewBufferCore(buf, paneLevel))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	wallets, err := wallet.LoadWallets(cfg.WalletsFile)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}

	ctx, cancel := bot.SignalContext(context.Background(), log.Logger)
	defer cancel()

	engine, err := bot.NewEngine(ctx, cfg, wallets, log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	inbox := ui.NewInbox(inboxSize)
	quotes := monitor.NewThrottler(quoteInterval, inbox, log.Logger)
	balances := monitor.NewThrottler(balanceEvery, inbox, log.Logger)
	// the log throttler must not log into the buffer it reports on
	logTicks := monitor.NewThrottler(logRefreshRate, inbox, zap.NewNop())
	for _, t := range []*monitor.Throttler{quotes, balances, logTicks} {
		go t.Run(ctx)
	}
	buf.OnAppend(func() { logTicks.Send(ui.LogMsg{}) })

	deps := ui.EngineDeps(ctx, engine, inbox, log.Logger).Throttled(quotes, balances)
	if err := engine.Start(ctx, deps.OnSnapshot); err != nil {
		return err
	}
	log.Info("🚀 Launchpad TUI started", zap.Int("wallets", len(wallets)))

	logs := component.NewLogPane(buf)
	logs.SetMinLevel(paneLevel)
	app := NewAppModel(deps, logs)
	defer app.Close()

	model := ui.NewSafeModel(app, log.Logger, func() tea.Cmd { return inbox.Listen(ctx) })
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	log.Info("🛑 Launchpad TUI stopped")
	return nil
}
