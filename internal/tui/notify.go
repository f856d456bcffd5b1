package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/atomic"

	"github.com/Veraticus/jobdeck/internal/console"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/table"
)

// Notifier forwards change signals from the console, the controllers, the
// account source and the quota guard into the running program. Signals never
// block the caller: at most one is in flight per topic and the model re-reads
// the source when it arrives.
type Notifier struct {
	send    func(tea.Msg)
	pending [topicCount]atomic.Bool
	mu      sync.RWMutex
}

// NewNotifier creates a detached notifier. Signals are dropped until Attach.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Attach starts delivering signals through send, usually (*tea.Program).Send.
func (n *Notifier) Attach(send func(tea.Msg)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.send = send
	for i := range n.pending {
		n.pending[i].Store(false)
	}
}

// Detach stops delivery.
func (n *Notifier) Detach() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.send = nil
}

// ConsoleEntry is a console.Console subscriber.
func (n *Notifier) ConsoleEntry(console.Entry) { n.signal(topicConsole) }

// OnJobEvent implements job.Observer.
func (n *Notifier) OnJobEvent(job.Event) { n.signal(topicJobs) }

// AccountsUpdated is a table.Source update callback.
func (n *Notifier) AccountsUpdated(table.Snapshot) { n.signal(topicAccounts) }

// QuotaChanged is a quota.Guard change callback.
func (n *Notifier) QuotaChanged(quota.State) { n.signal(topicQuota) }

func (n *Notifier) signal(t topic) {
	n.mu.RLock()
	send := n.send
	n.mu.RUnlock()
	if send == nil {
		return
	}
	if !n.pending[t].CompareAndSwap(false, true) {
		return
	}
	go send(changedMsg{topic: t})
}

// ack re-arms a topic. It is called before the source is read so a change
// racing the read produces a new signal.
func (n *Notifier) ack(t topic) {
	n.pending[t].Store(false)
}
