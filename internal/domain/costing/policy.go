package costing

import (
	"fmt"
	"strings"
)

// Policy decides what happens when the lots of a pair cannot cover a demand.
type Policy string

const (
	// PolicyReject fails the demand with INSUFFICIENT_STOCK before anything is consumed.
	PolicyReject Policy = "reject"

	// PolicyLastCost consumes what is available and prices the shortfall at the
	// unit cost of the newest lot of the pair.
	PolicyLastCost Policy = "last_cost"

	// PolicyZeroCost consumes what is available and leaves the shortfall uncosted.
	PolicyZeroCost Policy = "zero_cost"
)

// DefaultPolicy is used when nothing is configured.
const DefaultPolicy = PolicyReject

// ParsePolicy accepts a configured policy name. Empty selects DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyReject, PolicyLastCost, PolicyZeroCost:
		return p, nil
	default:
		return "", fmt.Errorf("unknown insufficient stock policy %q", s)
	}
}

func (p Policy) String() string {
	return string(p)
}
