// Package sync drives background mail polling. The poller owns a single
// goroutine that periodically asks the store to reconcile new mail and
// reports each round to the Bubble Tea runtime as a message.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/mailstore"
)

// PollState represents the current state of the poll loop.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

// PollStatus holds the observable state of the poller.
type PollStatus struct {
	State    PollState
	LastPoll time.Time
	Error    error
}

// PollResultMsg is a tea.Msg sent when one poll round completes. The
// store has already been reconciled by the time it arrives; the UI only
// needs to re-read and re-render.
type PollResultMsg struct {
	NewEmailCount int
	Error         error
	AuthExpired   bool
}

// fetchTimeout bounds a single background round.
const fetchTimeout = 30 * time.Second

// defaultInterval is used when the configured interval is missing or
// nonsensical.
const defaultInterval = 30 * time.Second

// Poller runs the new-mail check on a fixed interval with support for
// immediate manual triggers.
type Poller struct {
	store    *mailstore.Store
	interval time.Duration

	resultCh  chan PollResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	status  PollStatus
	running bool
}

// New creates a poller over the given store.
func New(s *mailstore.Store, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		store:     s,
		interval:  interval,
		resultCh:  make(chan PollResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns the subscription
// command that feeds poll results into the Bubble Tea runtime. Calling
// Start on a running poller returns nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine. The poller cannot be restarted.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate poll round without waiting for the next
// tick. A round already pending is not queued twice.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the state of the most recent poll round.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// waitForResult returns a tea.Cmd that blocks on the result channel. The
// UI re-issues it after every PollResultMsg to keep the subscription
// alive.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-p.resultCh:
			return msg
		case <-p.stopCh:
			return nil
		}
	}
}

// WaitForResult re-subscribes after a delivered message.
func (p *Poller) WaitForResult() tea.Cmd {
	return p.waitForResult()
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial round right away so the snapshot exists before the first
	// tick.
	p.pollOnce()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollOnce()
		case <-p.triggerCh:
			p.pollOnce()
		}
	}
}

// pollOnce runs one reconciliation round and publishes the outcome.
func (p *Poller) pollOnce() {
	p.setStatus(PollRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	err := p.store.CheckNewMail(ctx)
	if err != nil {
		p.setStatus(PollError, err)
		p.sendResult(PollResultMsg{
			Error:       err,
			AuthExpired: gateway.IsAuthError(err),
		})
		return
	}

	p.setStatus(PollIdle, nil)
	p.sendResult(PollResultMsg{NewEmailCount: p.store.NewEmailsCount()})
}

func (p *Poller) setStatus(state PollState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = PollStatus{
		State:    state,
		LastPoll: time.Now(),
		Error:    err,
	}
}

// sendResult delivers without blocking; if the UI is not draining the
// channel the round is dropped, which is fine since the store already
// holds the reconciled state.
func (p *Poller) sendResult(msg PollResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
	}
}
