package vectordb

import "time"

// FilterBuilder constructs a Filter fluently. All methods append to the
// Must list unless documented otherwise; use Should, MustNot, or the
// boolean combinators for other clauses.
//
// Example:
//
//	f, err := vectordb.NewFilter().
//	    Match("document_id", "doc-42").
//	    Between("chunk_index", 3, 7).
//	    Build()
type FilterBuilder struct {
	filter Filter
}

// NewFilter returns an empty builder.
func NewFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// Match adds an exact-match condition (field == value).
func (b *FilterBuilder) Match(key string, value any) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, MatchCondition{Key: key, Value: value})
	return b
}

// MatchAny adds an "any of" condition (field IN values).
func (b *FilterBuilder) MatchAny(key string, values ...any) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, MatchAnyCondition{Key: key, Values: values})
	return b
}

// Range adds a numeric range condition with explicit bounds.
func (b *FilterBuilder) Range(key string, r Range) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, RangeCondition{Key: key, Range: r})
	return b
}

// Gte adds field >= value.
func (b *FilterBuilder) Gte(key string, value float64) *FilterBuilder {
	return b.Range(key, Range{Gte: &value})
}

// Lte adds field <= value.
func (b *FilterBuilder) Lte(key string, value float64) *FilterBuilder {
	return b.Range(key, Range{Lte: &value})
}

// Between adds lo <= field <= hi.
func (b *FilterBuilder) Between(key string, lo, hi float64) *FilterBuilder {
	return b.Range(key, Range{Gte: &lo, Lte: &hi})
}

// DateRange adds from <= field <= to on a datetime payload field.
// A zero from or to leaves that bound open.
func (b *FilterBuilder) DateRange(key string, from, to time.Time) *FilterBuilder {
	tr := TimeRange{}
	if !from.IsZero() {
		tr.Gte = &from
	}
	if !to.IsZero() {
		tr.Lte = &to
	}
	b.filter.Must = append(b.filter.Must, DatetimeRangeCondition{Key: key, Range: tr})
	return b
}

// TextContains adds a full-text containment condition.
func (b *FilterBuilder) TextContains(key, text string) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, TextCondition{Key: key, Text: text})
	return b
}

// WithinRadius adds a geo-radius condition (radius in meters).
func (b *FilterBuilder) WithinRadius(key string, lat, lon, radiusMeters float64) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, GeoRadiusCondition{
		Key:    key,
		Center: GeoPoint{Lat: lat, Lon: lon},
		Radius: radiusMeters,
	})
	return b
}

// WithinBox adds a geo bounding-box condition.
func (b *FilterBuilder) WithinBox(key string, topLeft, bottomRight GeoPoint) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, GeoBoundingBoxCondition{
		Key:         key,
		TopLeft:     topLeft,
		BottomRight: bottomRight,
	})
	return b
}

// HasID restricts results to the given point ids.
func (b *FilterBuilder) HasID(ids ...PointID) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, HasIDCondition{IDs: ids})
	return b
}

// Exists requires the field to be present and non-empty.
func (b *FilterBuilder) Exists(key string) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, ExistsCondition{Key: key})
	return b
}

// IsNull requires the field to be present with a null value.
func (b *FilterBuilder) IsNull(key string) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, IsNullCondition{Key: key})
	return b
}

// Nested applies sub to elements of an array-of-objects field.
func (b *FilterBuilder) Nested(key string, sub *Filter) *FilterBuilder {
	b.filter.Must = append(b.filter.Must, NestedCondition{Key: key, Filter: sub})
	return b
}

// ArrayContainsAny matches if the array field contains at least one of the
// given values, expressed as a should group with a minimum match of 1.
func (b *FilterBuilder) ArrayContainsAny(key string, values ...any) *FilterBuilder {
	for _, v := range values {
		b.filter.Should = append(b.filter.Should, MatchCondition{Key: key, Value: v})
	}
	one := uint64(1)
	b.filter.MinShould = &one
	return b
}

// Should appends conditions to the Should (OR) list.
func (b *FilterBuilder) Should(conditions ...Condition) *FilterBuilder {
	b.filter.Should = append(b.filter.Should, conditions...)
	return b
}

// MustNot appends conditions to the MustNot (AND NOT) list.
func (b *FilterBuilder) MustNot(conditions ...Condition) *FilterBuilder {
	b.filter.MustNot = append(b.filter.MustNot, conditions...)
	return b
}

// MinShould sets the minimum number of Should conditions that must match.
func (b *FilterBuilder) MinShould(n uint64) *FilterBuilder {
	b.filter.MinShould = &n
	return b
}

// Build validates and returns the filter.
func (b *FilterBuilder) Build() (*Filter, error) {
	f := b.filter
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// MustBuild is Build that panics on a malformed filter. Intended for
// statically known filters in tests and wiring code.
func (b *FilterBuilder) MustBuild() *Filter {
	f, err := b.Build()
	if err != nil {
		panic(err)
	}
	return f
}

// ── Boolean combinators ──────────────────────────────────────────────────────

// AllOf combines filters so every one of them must match.
func AllOf(filters ...*Filter) *Filter {
	combined := &Filter{}
	for _, f := range filters {
		if f == nil {
			continue
		}
		combined.Must = append(combined.Must, SubFilterCondition{Filter: f})
	}
	return combined
}

// AnyOf combines filters so at least one of them must match.
func AnyOf(filters ...*Filter) *Filter {
	combined := &Filter{}
	for _, f := range filters {
		if f == nil {
			continue
		}
		combined.Should = append(combined.Should, SubFilterCondition{Filter: f})
	}
	return combined
}

// Not inverts a filter: points matching f are excluded.
func Not(f *Filter) *Filter {
	return &Filter{MustNot: []Condition{SubFilterCondition{Filter: f}}}
}
