package router

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Screen is one page on the navigation stack.
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// Closer is implemented by screens that own background work (watchers).
// It is called when the screen leaves the stack.
type Closer interface {
	Close()
}

// PushMsg asks the router to open Screen on top of the stack.
type PushMsg struct {
	Screen Screen
}

// PopMsg asks the router to go back one screen.
type PopMsg struct{}

// Push returns a command that opens s.
func Push(s Screen) tea.Cmd {
	return func() tea.Msg { return PushMsg{Screen: s} }
}

// Pop returns a command that closes the current screen.
func Pop() tea.Cmd {
	return func() tea.Msg { return PopMsg{} }
}

// Router manages navigation between screens using a stack.
type Router struct {
	stack  []Screen
	width  int
	height int
}

func New(initialScreen Screen) *Router {
	return &Router{
		stack: []Screen{initialScreen},
	}
}

func (r *Router) Init() tea.Cmd {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1].Init()
}

// Update handles navigation and forwards everything else to the top screen.
// Messages a background screen still waits for (late quotes) are dropped.
func (r *Router) Update(msg tea.Msg) (*Router, tea.Cmd) {
	switch msg := msg.(type) {
	case PushMsg:
		return r, r.push(msg.Screen)

	case PopMsg:
		return r, r.pop()

	case tea.WindowSizeMsg:
		r.SetSize(msg.Width, msg.Height)
		return r, nil
	}

	if len(r.stack) == 0 {
		return r, nil
	}
	top := len(r.stack) - 1
	updated, cmd := r.stack[top].Update(msg)
	r.stack[top] = updated
	return r, cmd
}

func (r *Router) View() string {
	if len(r.stack) == 0 {
		return "No screen available"
	}
	return r.stack[len(r.stack)-1].View()
}

// SetSize sets the size for the router and current screen.
func (r *Router) SetSize(width, height int) {
	r.width = width
	r.height = height
	if len(r.stack) > 0 {
		r.stack[len(r.stack)-1].SetSize(width, height)
	}
}

func (r *Router) push(screen Screen) tea.Cmd {
	screen.SetSize(r.width, r.height)
	r.stack = append(r.stack, screen)
	return screen.Init()
}

// pop never removes the root screen.
func (r *Router) pop() tea.Cmd {
	if len(r.stack) <= 1 {
		return nil
	}
	leaving := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	if c, ok := leaving.(Closer); ok {
		c.Close()
	}

	current := r.stack[len(r.stack)-1]
	current.SetSize(r.width, r.height)
	return current.Init()
}

// Close closes every screen, top first.
func (r *Router) Close() {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if c, ok := r.stack[i].(Closer); ok {
			c.Close()
		}
	}
}

func (r *Router) Current() Screen {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

func (r *Router) Depth() int {
	return len(r.stack)
}

func (r *Router) CanGoBack() bool {
	return len(r.stack) > 1
}
