package sim

import (
	"fmt"
	"strings"
)

// PolicyKind selects the migration strategy applied to every paused
// application of a run.
type PolicyKind int

const (
	// Passive waits at the last server until it is powered and has room.
	Passive PolicyKind = iota
	// Greedy moves to the closest node that currently has power.
	Greedy
	// SuperGreedy moves to the node that currently has the most power.
	SuperGreedy
	// YOLO always moves to the nearest neighbor, ignoring power.
	YOLO
	// LookAhead consults the true future trace (oracle).
	LookAhead
	// Practical forecasts from past samples only.
	Practical
)

var policyNames = map[PolicyKind]string{
	Passive:     "passive",
	Greedy:      "greedy",
	SuperGreedy: "super-greedy",
	YOLO:        "YOLO",
	LookAhead:   "look-ahead",
	Practical:   "practical",
}

// AllPolicies lists every policy in a stable order.
var AllPolicies = []PolicyKind{Passive, Greedy, SuperGreedy, YOLO, LookAhead, Practical}

func (k PolicyKind) String() string {
	if name, ok := policyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(k))
}

// Valid reports whether k is one of the defined policies.
func (k PolicyKind) Valid() bool {
	_, ok := policyNames[k]
	return ok
}

// ParsePolicy maps a policy name (case-insensitive) to its kind.
func ParsePolicy(name string) (PolicyKind, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, k := range AllPolicies {
		if strings.ToLower(policyNames[k]) == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown migration policy %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k PolicyKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown migration policy %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PolicyKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// reevaluatesOnArrival reports whether a policy re-decides when the target
// it reached has no room. Greedy policies look at the current power again;
// practical refreshes its forecast with the samples observed since.
func (k PolicyKind) reevaluatesOnArrival() bool {
	return k == Greedy || k == SuperGreedy || k == Practical
}

// decision is a policy's answer for one paused application.
type decision struct {
	target       NodeID
	targetServer ServerID
	delay        int
}
