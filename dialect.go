package negotiator

import "encoding/json"

// Dialect selects which style of session description a peer speaks:
// a flat description carrying every track of one kind in a single media
// section, or one media section per transceiver.
type Dialect int

const (
	// DialectUnifiedPlan is the per-transceiver style
	// (the default in Chrome since M72).
	DialectUnifiedPlan Dialect = iota

	// DialectPlanB is the flat style.
	// NB: This format should be considered deprecated.
	DialectPlanB
)

const (
	dialectUnifiedPlanStr = "unified-plan"
	dialectPlanBStr       = "plan-b"
)

func newDialect(raw string) Dialect {
	if raw == dialectPlanBStr {
		return DialectPlanB
	}
	return DialectUnifiedPlan
}

func (d Dialect) String() string {
	switch d {
	case DialectPlanB:
		return dialectPlanBStr
	default:
		return dialectUnifiedPlanStr
	}
}

// UnmarshalJSON parses the JSON-encoded data and stores the result.
func (d *Dialect) UnmarshalJSON(b []byte) error {
	var val string
	if err := json.Unmarshal(b, &val); err != nil {
		return err
	}
	*d = newDialect(val)
	return nil
}

// MarshalJSON returns the JSON encoding.
func (d Dialect) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
