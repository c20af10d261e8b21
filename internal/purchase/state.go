package purchase

import "fmt"

// State is a step of one label purchase.
type State string

const (
	StateQuoted                         State = "QUOTED"
	StateDebiting                       State = "DEBITING"
	StateShipmentRecorded               State = "SHIPMENT_RECORDED"
	StateTransactionLinked              State = "TRANSACTION_LINKED"
	StateDone                           State = "DONE"
	StateFailed                         State = "FAILED"
	StateDebitingFailedNoRefundNeeded   State = "DEBITING_FAILED_NO_REFUND_NEEDED"
	StateShipmentRecordFailedAfterDebit State = "SHIPMENT_RECORD_FAILED_AFTER_DEBIT"
)

var transitions = map[State][]State{
	StateQuoted:                         {StateDebiting},
	StateDebiting:                       {StateShipmentRecorded, StateDebitingFailedNoRefundNeeded, StateShipmentRecordFailedAfterDebit},
	StateShipmentRecorded:               {StateTransactionLinked, StateDone},
	StateTransactionLinked:              {StateDone},
	StateShipmentRecordFailedAfterDebit: {},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateDebitingFailedNoRefundNeeded:
		return true
	}
	return false
}

// CanTransition reports whether the machine may move from s to next.
// FAILED is reachable from every non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// machine tracks the state of a single purchase.
type machine struct {
	state   State
	history []State
}

func newMachine() *machine {
	return &machine{state: StateQuoted, history: []State{StateQuoted}}
}

func (m *machine) advance(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("invalid purchase transition %s -> %s", m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}
