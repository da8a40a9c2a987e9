package approval

import "strings"

// Decision is the tagged interpretation of a reaction signal. Adapters for
// each event source (emoji reactions, poll votes) normalize their raw
// shapes into a Decision so the gate stays event-source-agnostic.
type Decision int

const (
	DecisionUnrecognized Decision = iota
	DecisionApprove
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	default:
		return "unrecognized"
	}
}

// DecisionFromEmoji maps an emoji reaction marker to a Decision.
func DecisionFromEmoji(marker string) Decision {
	switch strings.TrimSpace(marker) {
	case "👍", "✅":
		return DecisionApprove
	case "👎", "❌":
		return DecisionReject
	default:
		return DecisionUnrecognized
	}
}

// DecisionFromPollVote maps the selected options of a native poll vote to a
// Decision. An empty or ambiguous selection is unrecognized.
func DecisionFromPollVote(selected []string) Decision {
	decision := DecisionUnrecognized
	for _, option := range selected {
		option = strings.ToLower(option)

		var current Decision
		switch {
		case strings.Contains(option, "approve") || strings.Contains(option, "✅"):
			current = DecisionApprove
		case strings.Contains(option, "reject") || strings.Contains(option, "❌"):
			current = DecisionReject
		default:
			continue
		}

		if decision != DecisionUnrecognized && decision != current {
			return DecisionUnrecognized
		}
		decision = current
	}
	return decision
}
