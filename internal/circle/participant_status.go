package circle

type ParticipantState string

const (
	StatePending     ParticipantState = "pending"
	StateJoining     ParticipantState = "joining"
	StateDepositDue  ParticipantState = "deposit_due"
	StateContributed ParticipantState = "contributed"
	StatePaidOut     ParticipantState = "paid_out"
)

var stateMessages = map[ParticipantState]string{
	StatePending:     "Waiting for the member to accept",
	StateJoining:     "Accepted, waiting for on-chain join",
	StateDepositDue:  "Deposit due for the current period",
	StateContributed: "Deposit received for the current period",
	StatePaidOut:     "Payout received",
}

// ParticipantFacts are the stored flags plus whatever the chain told us.
// Nil on-chain facts are unknown and fall back to the stored flags.
type ParticipantFacts struct {
	Accepted    bool
	Paid        bool
	Contributed bool

	IsMember     *bool
	HasDeposited *bool
}

// Message returns the human-readable text for a state
func (s ParticipantState) Message() string {
	return stateMessages[s]
}

// ParticipantStatus maps a participant's facts to its lifecycle state.
// Known on-chain facts win over stored flags.
func ParticipantStatus(f ParticipantFacts) (ParticipantState, string) {
	state := participantState(f)
	return state, state.Message()
}

func participantState(f ParticipantFacts) ParticipantState {
	if f.Paid {
		return StatePaidOut
	}

	accepted := f.Accepted || (f.IsMember != nil && *f.IsMember)
	if !accepted {
		return StatePending
	}
	if f.IsMember != nil && !*f.IsMember {
		return StateJoining
	}

	deposited := f.Contributed
	if f.HasDeposited != nil {
		deposited = *f.HasDeposited
	}
	if deposited {
		return StateContributed
	}
	return StateDepositDue
}
