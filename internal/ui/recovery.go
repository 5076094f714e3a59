package ui

import (
	"runtime/debug"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// SafeModel wraps the root model with panic recovery. A panic while handling
// an inbox delivery re-arms the listener via resume, otherwise the inbox
// would stop draining.
type SafeModel struct {
	model  tea.Model
	logger *zap.Logger
	resume func() tea.Cmd
	panics atomic.Uint64
}

func NewSafeModel(model tea.Model, logger *zap.Logger, resume func() tea.Cmd) *SafeModel {
	return &SafeModel{
		model:  model,
		logger: logger.Named("recovery"),
		resume: resume,
	}
}

func (sm *SafeModel) Init() (cmd tea.Cmd) {
	defer sm.recoverFromPanic("Init", nil, &cmd)
	return sm.model.Init()
}

func (sm *SafeModel) Update(msg tea.Msg) (_ tea.Model, cmd tea.Cmd) {
	defer sm.recoverFromPanic("Update", msg, &cmd)
	sm.model, cmd = sm.model.Update(msg)
	return sm, cmd
}

func (sm *SafeModel) View() (view string) {
	defer func() {
		if r := recover(); r != nil {
			sm.panics.Add(1)
			sm.logger.Error("View panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			view = "UI Error: View crashed. Press Ctrl+C to exit."
		}
	}()
	return sm.model.View()
}

// Panics returns how many panics were recovered.
func (sm *SafeModel) Panics() uint64 {
	return sm.panics.Load()
}

func (sm *SafeModel) recoverFromPanic(method string, msg tea.Msg, cmd *tea.Cmd) {
	r := recover()
	if r == nil {
		return
	}
	sm.panics.Add(1)
	sm.logger.Error("UI method panic recovered",
		zap.String("method", method),
		zap.Any("panic", r),
		zap.String("stack", string(debug.Stack())))

	*cmd = nil
	if _, delivered := msg.(Delivered); delivered && sm.resume != nil {
		*cmd = sm.resume()
	}
}
