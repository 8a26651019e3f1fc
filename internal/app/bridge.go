package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jsean662/MailFlowAI/internal/assistant"
)

// navigateMsg carries an assistant navigation request to the UI loop.
type navigateMsg struct {
	view string
}

// confirmRequestMsg asks the UI to approve sending the given draft. The
// assistant goroutine blocks on reply until the user decides.
type confirmRequestMsg struct {
	draft assistant.Draft
	reply chan bool
}

// assistantBridge relays assistant tool callbacks, which run on the
// assistant's goroutine, into the Bubble Tea message loop.
type assistantBridge struct {
	navCh     chan navigateMsg
	confirmCh chan confirmRequestMsg
}

func newAssistantBridge() *assistantBridge {
	return &assistantBridge{
		navCh:     make(chan navigateMsg, 8),
		confirmCh: make(chan confirmRequestMsg, 1),
	}
}

// navigate queues a view change request. Non-blocking; a full queue
// drops the request rather than stalling the assistant.
func (b *assistantBridge) navigate(view string) {
	select {
	case b.navCh <- navigateMsg{view: view}:
	default:
	}
}

// confirmSend hands the draft to the UI and waits for the user's answer.
func (b *assistantBridge) confirmSend(d assistant.Draft) bool {
	req := confirmRequestMsg{draft: d, reply: make(chan bool, 1)}
	b.confirmCh <- req
	return <-req.reply
}

// waitForNav returns a command that blocks until the assistant requests
// a navigation.
func (b *assistantBridge) waitForNav() tea.Cmd {
	return func() tea.Msg {
		return <-b.navCh
	}
}

// waitForConfirm returns a command that blocks until the assistant asks
// for a send confirmation.
func (b *assistantBridge) waitForConfirm() tea.Cmd {
	return func() tea.Msg {
		return <-b.confirmCh
	}
}
