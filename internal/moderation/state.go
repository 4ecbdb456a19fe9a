package moderation

import "fmt"

type State string

const (
	StateReceived         State = "received"
	StateProcessing       State = "processing"
	StateDownloading      State = "downloading"
	StateProbing          State = "probing"
	StateExtractingAudio  State = "extracting_audio"
	StateExtractingFrames State = "extracting_frames"
	StateAnalyzingVisuals State = "analyzing_visuals"
	StateDeciding         State = "deciding"
	StateTerminal         State = "terminal"
)

var stateOrder = map[State]int{
	StateReceived:         0,
	StateProcessing:       1,
	StateDownloading:      2,
	StateProbing:          3,
	StateExtractingAudio:  4,
	StateExtractingFrames: 5,
	StateAnalyzingVisuals: 6,
	StateDeciding:         7,
	StateTerminal:         8,
}

// stateMachine tracks one run. Transitions only move forward; the error path jumps straight to terminal.
type stateMachine struct {
	current State
	history []State
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateReceived, history: []State{StateReceived}}
}

func (m *stateMachine) advance(next State) error {
	to, ok := stateOrder[next]
	if !ok {
		return fmt.Errorf("unknown state %q", next)
	}
	if to <= stateOrder[m.current] {
		return fmt.Errorf("invalid transition from %s to %s", m.current, next)
	}
	m.current = next
	m.history = append(m.history, next)
	return nil
}

func (m *stateMachine) Current() State {
	return m.current
}

func (m *stateMachine) History() []State {
	return append([]State{}, m.history...)
}
