package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVotingPolicy_Decide(t *testing.T) {
	tests := []struct {
		name   string
		policy VotingPolicy
		votes  []bool
		want   bool
	}{
		{"any/none fired", AnyTrigger, []bool{false, false, false}, false},
		{"any/one fired", AnyTrigger, []bool{true, false, false}, true},
		{"majority/one of three", MajorityVote, []bool{true, false, false}, false},
		{"majority/two of three", MajorityVote, []bool{true, true, false}, true},
		{"majority/all fired", MajorityVote, []bool{true, true, true}, true},
		{"unanimous/two of three", UnanimousVote, []bool{true, true, false}, false},
		{"unanimous/all fired", UnanimousVote, []bool{true, true, true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Decide(tt.votes))
		})
	}
}

func TestVotingPolicy_String(t *testing.T) {
	assert.Equal(t, "any", AnyTrigger.String())
	assert.Equal(t, "majority", MajorityVote.String())
	assert.Equal(t, "unanimous", UnanimousVote.String())
	assert.Equal(t, "unknown", VotingPolicy(99).String())
}

func TestVotingPolicy_ZeroValueIsMajority(t *testing.T) {
	var p VotingPolicy
	assert.Equal(t, MajorityVote, p)
}
