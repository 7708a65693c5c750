package drift

// VotingPolicy decides how the independent drift statistics combine into the
// overall verdict. It is deliberately separate from the statistics so each
// side stays independently testable.
type VotingPolicy int

const (
	// MajorityVote requires at least 2 of 3 methods to agree. It is the zero
	// value and therefore the default policy.
	MajorityVote VotingPolicy = iota
	// AnyTrigger flags drift when any single method fires (high sensitivity).
	AnyTrigger
	// UnanimousVote requires all methods to agree (lowest false positives).
	UnanimousVote
)

// String returns the policy name.
func (p VotingPolicy) String() string {
	switch p {
	case AnyTrigger:
		return "any"
	case MajorityVote:
		return "majority"
	case UnanimousVote:
		return "unanimous"
	default:
		return "unknown"
	}
}

// Decide applies the policy to a set of method verdicts.
func (p VotingPolicy) Decide(votes []bool) bool {
	fired := 0
	for _, v := range votes {
		if v {
			fired++
		}
	}
	switch p {
	case AnyTrigger:
		return fired >= 1
	case UnanimousVote:
		return fired == len(votes)
	default: // MajorityVote
		return fired*2 > len(votes)
	}
}
