package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecisionFromEmoji(t *testing.T) {
	tests := []struct {
		marker string
		want   Decision
	}{
		{"👍", DecisionApprove},
		{"✅", DecisionApprove},
		{"👎", DecisionReject},
		{"❌", DecisionReject},
		{" 👍 ", DecisionApprove},
		{"🎉", DecisionUnrecognized},
		{"", DecisionUnrecognized},
		{"yes", DecisionUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.marker, func(t *testing.T) {
			assert.Equal(t, tt.want, DecisionFromEmoji(tt.marker))
		})
	}
}

func TestDecisionFromPollVote(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		want     Decision
	}{
		{"approve option", []string{"Approve ✅"}, DecisionApprove},
		{"reject option", []string{"Reject ❌"}, DecisionReject},
		{"case insensitive", []string{"APPROVE"}, DecisionApprove},
		{"empty selection", nil, DecisionUnrecognized},
		{"unrelated option", []string{"Maybe later"}, DecisionUnrecognized},
		{"conflicting selection", []string{"Approve ✅", "Reject ❌"}, DecisionUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecisionFromPollVote(tt.selected))
		})
	}
}
