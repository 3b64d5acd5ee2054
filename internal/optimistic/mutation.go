package optimistic

import "fmt"

// State — состояние одной мутации: Idle -> SpeculativeApplied -> Confirmed | RolledBack.
type State string

const (
	StateIdle               State = "idle"
	StateSpeculativeApplied State = "speculative_applied"
	StateConfirmed          State = "confirmed"
	StateRolledBack         State = "rolled_back"
)

type MutationOption func(*mutation)

// OnApplied вызывается сразу после спекулятивного применения, до сетевого вызова.
// Здесь UI закрывает модалку действия.
func OnApplied(fn func()) MutationOption {
	return func(m *mutation) { m.onApplied = fn }
}

// OnTransition получает каждую смену состояния мутации.
func OnTransition(fn func(State)) MutationOption {
	return func(m *mutation) { m.onTransition = fn }
}

// FailureMessage переопределяет текст уведомления об откате.
func FailureMessage(msg string) MutationOption {
	return func(m *mutation) { m.failureMsg = msg }
}

type mutation struct {
	state        State
	onApplied    func()
	onTransition func(State)
	failureMsg   string
}

func newMutation(opts []MutationOption) *mutation {
	m := &mutation{state: StateIdle}
	for _, o := range opts {
		o(m)
	}
	return m
}

var allowed = map[State]State{
	StateSpeculativeApplied: StateIdle,
	StateConfirmed:          StateSpeculativeApplied,
	StateRolledBack:         StateSpeculativeApplied,
}

func (m *mutation) to(next State) {
	if from := allowed[next]; m.state != from {
		panic(fmt.Sprintf("optimistic: illegal transition %s -> %s", m.state, next))
	}
	m.state = next
	if m.onTransition != nil {
		m.onTransition(next)
	}
	if next == StateSpeculativeApplied && m.onApplied != nil {
		m.onApplied()
	}
}
