// Package testing drives Bubble Tea models without a terminal.
package testing

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultTimeout is how long a Driver waits for a command before handing its
// result to the inbox. Cursor blinks and animation frames land there.
const DefaultTimeout = 50 * time.Millisecond

// maxDepth stops command chains that never settle.
const maxDepth = 32

// Driver feeds messages to a model and runs the commands it returns, the way
// a tea.Program would, but synchronously.
type Driver struct {
	Model    tea.Model
	inbox    chan tea.Msg
	Messages []tea.Msg
	Timeout  time.Duration
	Quit     bool
}

// NewDriver wraps m.
func NewDriver(m tea.Model) *Driver {
	return &Driver{
		Model:   m,
		inbox:   make(chan tea.Msg, 256),
		Timeout: DefaultTimeout,
	}
}

// Post queues msg from outside the model. It can be used as a program's Send.
func (d *Driver) Post(msg tea.Msg) {
	d.inbox <- msg
}

// Init runs the model's Init command.
func (d *Driver) Init() *Driver {
	d.run(d.Model.Init(), 0)
	return d
}

// Send delivers msgs in order, running every resulting command.
func (d *Driver) Send(msgs ...tea.Msg) *Driver {
	for _, msg := range msgs {
		d.deliver(msg, 0)
	}
	return d
}

// View renders the model with styling removed.
func (d *Driver) View() string {
	return StripANSI(d.Model.View())
}

// WaitFor delivers posted messages until cond holds or timeout elapses.
func (d *Driver) WaitFor(cond func(tea.Model) bool, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for !cond(d.Model) {
		select {
		case msg := <-d.inbox:
			d.deliver(msg, 0)
		case <-deadline:
			return cond(d.Model)
		}
	}
	return true
}

func (d *Driver) deliver(msg tea.Msg, depth int) {
	if depth > maxDepth {
		return
	}
	switch msg := msg.(type) {
	case nil:
		return
	case tea.BatchMsg:
		for _, cmd := range msg {
			d.run(cmd, depth+1)
		}
		return
	case tea.QuitMsg:
		d.Quit = true
		return
	}
	d.Messages = append(d.Messages, msg)
	var cmd tea.Cmd
	d.Model, cmd = d.Model.Update(msg)
	d.run(cmd, depth+1)
}

func (d *Driver) run(cmd tea.Cmd, depth int) {
	if cmd == nil {
		return
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		if isFrame(msg) {
			return
		}
		d.deliver(msg, depth)
	case <-time.After(d.Timeout):
		go func() {
			msg := <-done
			if isFrame(msg) {
				return
			}
			select {
			case d.inbox <- msg:
			default:
			}
		}()
	}
}

// isFrame reports animation frames, which would tick forever.
func isFrame(msg tea.Msg) bool {
	_, ok := msg.(spinner.TickMsg)
	return ok
}
