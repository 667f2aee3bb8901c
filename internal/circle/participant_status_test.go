package circle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipantStatus(t *testing.T) {
	tests := []struct {
		name  string
		facts ParticipantFacts
		want  ParticipantState
	}{
		{"not accepted", ParticipantFacts{}, StatePending},
		{"paid wins", ParticipantFacts{Accepted: true, Paid: true}, StatePaidOut},
		{"accepted no deposit", ParticipantFacts{Accepted: true}, StateDepositDue},
		{"accepted contributed", ParticipantFacts{Accepted: true, Contributed: true}, StateContributed},
		{"accepted but not on chain", ParticipantFacts{Accepted: true, IsMember: boolPtr(false)}, StateJoining},
		{"member on chain overrides stored accept", ParticipantFacts{IsMember: boolPtr(true)}, StateDepositDue},
		{"chain deposit overrides stored flag", ParticipantFacts{Accepted: true, Contributed: true, HasDeposited: boolPtr(false)}, StateDepositDue},
		{"chain deposit confirms", ParticipantFacts{Accepted: true, IsMember: boolPtr(true), HasDeposited: boolPtr(true)}, StateContributed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, msg := ParticipantStatus(tt.facts)
			assert.Equal(t, tt.want, state)
			assert.Equal(t, tt.want.Message(), msg)
			assert.NotEmpty(t, msg)
		})
	}
}
