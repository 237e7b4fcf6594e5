package vectordb

import "time"

// Condition is the interface all filter conditions implement.
// Each backend converts these to its native filter format.
type Condition interface {
	// IsCondition is a marker method to keep the set of conditions closed.
	IsCondition()
}

// Filter is a boolean predicate tree with three sibling condition lists.
//
//   - Must: all conditions must match (AND)
//   - Should: at least MinShould conditions must match (OR; defaults to 1)
//   - MustNot: none of the conditions may match (AND NOT)
//
// A nil *Filter means "no restriction" and is valid everywhere a filter is
// accepted. A non-nil filter with all three lists empty is invalid.
type Filter struct {
	Must    []Condition `json:"must,omitempty"`
	Should  []Condition `json:"should,omitempty"`
	MustNot []Condition `json:"mustNot,omitempty"`

	// MinShould is the minimum number of Should conditions that must match.
	// Nil means the backend default of 1 when Should is non-empty.
	MinShould *uint64 `json:"minShould,omitempty"`
}

// ── Field conditions ─────────────────────────────────────────────────────────

// MatchCondition matches a payload field against an exact value.
// Supports string, bool and integer values.
type MatchCondition struct {
	Key   string `json:"field"`
	Value any    `json:"equalTo"`
}

func (MatchCondition) IsCondition() {}

// MatchAnyCondition matches if the field equals any of the given values
// (IN operator).
type MatchAnyCondition struct {
	Key    string `json:"field"`
	Values []any  `json:"anyOf"`
}

func (MatchAnyCondition) IsCondition() {}

// Range holds numeric bounds. Nil bounds are open.
type Range struct {
	Gt  *float64 `json:"greaterThan,omitempty"`
	Gte *float64 `json:"greaterThanOrEqualTo,omitempty"`
	Lt  *float64 `json:"lessThan,omitempty"`
	Lte *float64 `json:"lessThanOrEqualTo,omitempty"`
}

// IsZero reports whether no bound is set.
func (r Range) IsZero() bool {
	return r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil
}

// RangeCondition filters a numeric payload field by range.
type RangeCondition struct {
	Key   string `json:"field"`
	Range Range  `json:"range"`
}

func (RangeCondition) IsCondition() {}

// TimeRange holds temporal bounds. Nil bounds are open.
type TimeRange struct {
	Gt  *time.Time `json:"after,omitempty"`
	Gte *time.Time `json:"atOrAfter,omitempty"`
	Lt  *time.Time `json:"before,omitempty"`
	Lte *time.Time `json:"atOrBefore,omitempty"`
}

// IsZero reports whether no bound is set.
func (r TimeRange) IsZero() bool {
	return r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil
}

// DatetimeRangeCondition filters a datetime payload field by range.
type DatetimeRangeCondition struct {
	Key   string    `json:"field"`
	Range TimeRange `json:"range"`
}

func (DatetimeRangeCondition) IsCondition() {}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeoRadiusCondition matches points whose geo field lies within Radius
// meters of Center.
type GeoRadiusCondition struct {
	Key    string   `json:"field"`
	Center GeoPoint `json:"center"`
	Radius float64  `json:"radiusMeters"`
}

func (GeoRadiusCondition) IsCondition() {}

// GeoBoundingBoxCondition matches points whose geo field lies within the
// box spanned by TopLeft and BottomRight.
type GeoBoundingBoxCondition struct {
	Key         string   `json:"field"`
	TopLeft     GeoPoint `json:"topLeft"`
	BottomRight GeoPoint `json:"bottomRight"`
}

func (GeoBoundingBoxCondition) IsCondition() {}

// TextCondition matches if a full-text indexed field contains the given
// substring/phrase.
type TextCondition struct {
	Key  string `json:"field"`
	Text string `json:"contains"`
}

func (TextCondition) IsCondition() {}

// ── Structural conditions ────────────────────────────────────────────────────

// ExistsCondition matches points where the field is present and non-empty.
type ExistsCondition struct {
	Key string `json:"field"`
}

func (ExistsCondition) IsCondition() {}

// IsNullCondition matches points where the field is present with a null value.
type IsNullCondition struct {
	Key string `json:"field"`
}

func (IsNullCondition) IsCondition() {}

// HasIDCondition matches points by their ids.
type HasIDCondition struct {
	IDs []PointID `json:"ids"`
}

func (HasIDCondition) IsCondition() {}

// NestedCondition applies a sub-filter to elements of an array-of-objects
// payload field, each element evaluated independently.
type NestedCondition struct {
	Key    string  `json:"field"`
	Filter *Filter `json:"filter"`
}

func (NestedCondition) IsCondition() {}

// SubFilterCondition embeds a whole filter as a condition, enabling the
// AllOf/AnyOf/Not boolean combinators.
type SubFilterCondition struct {
	Filter *Filter `json:"filter"`
}

func (SubFilterCondition) IsCondition() {}
