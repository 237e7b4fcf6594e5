package vectordb

import "fmt"

// Validate recursively checks the structural invariants of a filter tree.
// It is pure and performs no I/O, so it can run before every network call
// and be exercised standalone.
//
// Rejected shapes:
//   - a filter whose Must, Should and MustNot lists are all empty
//   - a field condition combining more than one of {match, range, geo}
//     on the same key (modelled as distinct condition types here, so the
//     conflict check applies to malformed hand-built conditions)
//   - an empty field key on any field-addressed condition
//   - a nested or combinator condition carrying a nil or invalid sub-filter
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if len(f.Must) == 0 && len(f.Should) == 0 && len(f.MustNot) == 0 {
		return ErrEmptyFilter
	}
	for _, list := range [][]Condition{f.Must, f.Should, f.MustNot} {
		for _, c := range list {
			if err := validateCondition(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateCondition(c Condition) error {
	switch cond := c.(type) {
	case MatchCondition:
		return requireKey(cond.Key)
	case MatchAnyCondition:
		if err := requireKey(cond.Key); err != nil {
			return err
		}
		if len(cond.Values) == 0 {
			return fmt.Errorf("%w: match-any on %q has no values", ErrConflictingCondition, cond.Key)
		}
		return nil
	case RangeCondition:
		if err := requireKey(cond.Key); err != nil {
			return err
		}
		if cond.Range.IsZero() {
			return fmt.Errorf("%w: range on %q has no bounds", ErrConflictingCondition, cond.Key)
		}
		return nil
	case DatetimeRangeCondition:
		if err := requireKey(cond.Key); err != nil {
			return err
		}
		if cond.Range.IsZero() {
			return fmt.Errorf("%w: datetime range on %q has no bounds", ErrConflictingCondition, cond.Key)
		}
		return nil
	case GeoRadiusCondition:
		if err := requireKey(cond.Key); err != nil {
			return err
		}
		if cond.Radius <= 0 {
			return fmt.Errorf("%w: geo radius on %q must be positive", ErrConflictingCondition, cond.Key)
		}
		return nil
	case GeoBoundingBoxCondition:
		return requireKey(cond.Key)
	case TextCondition:
		if err := requireKey(cond.Key); err != nil {
			return err
		}
		if cond.Text == "" {
			return fmt.Errorf("%w: text condition on %q has empty text", ErrConflictingCondition, cond.Key)
		}
		return nil
	case ExistsCondition:
		return requireKey(cond.Key)
	case IsNullCondition:
		return requireKey(cond.Key)
	case HasIDCondition:
		if len(cond.IDs) == 0 {
			return fmt.Errorf("%w: has-id condition has no ids", ErrConflictingCondition)
		}
		return nil
	case NestedCondition:
		if err := requireKey(cond.Key); err != nil {
			return err
		}
		if cond.Filter == nil {
			return fmt.Errorf("%w: nested condition on %q has no sub-filter", ErrConflictingCondition, cond.Key)
		}
		return cond.Filter.Validate()
	case SubFilterCondition:
		if cond.Filter == nil {
			return fmt.Errorf("%w: sub-filter condition is nil", ErrConflictingCondition)
		}
		return cond.Filter.Validate()
	case FieldCondition:
		return cond.validate()
	default:
		return fmt.Errorf("%w: unknown condition type %T", ErrConflictingCondition, c)
	}
}

func requireKey(key string) error {
	if key == "" {
		return ErrEmptyFieldKey
	}
	return nil
}

// FieldCondition is the unconstrained form of a field condition where
// match, range and geo clauses share one struct, mirroring the wire
// representation. At most one clause may be set; Validate enforces this.
// The typed conditions above are the preferred construction path, this
// form exists for callers deserializing filters from external input.
type FieldCondition struct {
	Key   string     `json:"field"`
	Match any        `json:"equalTo,omitempty"`
	Range *Range     `json:"range,omitempty"`
	Geo   *GeoRadius `json:"geoRadius,omitempty"`
}

// GeoRadius is the geo clause of a FieldCondition.
type GeoRadius struct {
	Center GeoPoint `json:"center"`
	Radius float64  `json:"radiusMeters"`
}

func (FieldCondition) IsCondition() {}

func (c FieldCondition) validate() error {
	if err := requireKey(c.Key); err != nil {
		return err
	}
	set := 0
	if c.Match != nil {
		set++
	}
	if c.Range != nil {
		set++
	}
	if c.Geo != nil {
		set++
	}
	switch set {
	case 0:
		return fmt.Errorf("%w: field condition on %q sets no clause", ErrConflictingCondition, c.Key)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: field condition on %q sets %d of match/range/geo", ErrConflictingCondition, c.Key, set)
	}
}
