package vin

import (
	"fmt"
	"strings"
)

// Policy selects how a token is accepted.
type Policy string

const (
	// PolicyStrict requires the shape and a correct check digit.
	PolicyStrict Policy = "strict"
	// PolicyLenient requires the shape only.
	PolicyLenient Policy = "lenient"
)

// ParsePolicy converts a config or flag value into a Policy. An empty value
// selects PolicyStrict.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(PolicyStrict):
		return PolicyStrict, nil
	case string(PolicyLenient):
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown vin policy %q (want strict or lenient)", value)
	}
}

// Accepts reports whether token passes the policy.
func (p Policy) Accepts(token string) bool {
	switch p {
	case PolicyStrict:
		return Valid(token)
	case PolicyLenient:
		return ShapeOK(token)
	default:
		return false
	}
}

// Valid reports whether p is one of the known policies.
func (p Policy) Valid() bool {
	return p == PolicyStrict || p == PolicyLenient
}

func (p Policy) String() string {
	return string(p)
}
