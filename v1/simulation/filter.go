package simulation

import (
	"math"
	"strings"
	"time"

	"github.com/arcadialab/vecengine/v1/vectordb"
)

// matchesFilter reimplements the three-list filter semantics: all Must
// conditions match, at least MinShould (default 1) of the Should
// conditions match when any exist, and no MustNot condition matches.
func matchesFilter(p vectordb.Point, f *vectordb.Filter) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !evalCondition(p, c) {
			return false
		}
	}
	if len(f.Should) > 0 {
		need := uint64(1)
		if f.MinShould != nil {
			need = *f.MinShould
		}
		var matched uint64
		for _, c := range f.Should {
			if evalCondition(p, c) {
				matched++
			}
		}
		if matched < need {
			return false
		}
	}
	for _, c := range f.MustNot {
		if evalCondition(p, c) {
			return false
		}
	}
	return true
}

func evalCondition(p vectordb.Point, c vectordb.Condition) bool {
	switch cond := c.(type) {
	case vectordb.MatchCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		return ok && valueMatches(v, cond.Value)
	case vectordb.MatchAnyCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		if !ok {
			return false
		}
		for _, want := range cond.Values {
			if valueMatches(v, want) {
				return true
			}
		}
		return false
	case vectordb.RangeCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		if !ok {
			return false
		}
		n, ok := toFloat(v)
		return ok && inRange(n, cond.Range)
	case vectordb.DatetimeRangeCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		if !ok {
			return false
		}
		t, ok := toTime(v)
		return ok && inTimeRange(t, cond.Range)
	case vectordb.GeoRadiusCondition:
		pt, ok := geoValue(p.Payload, cond.Key)
		return ok && haversineMeters(cond.Center, pt) <= cond.Radius
	case vectordb.GeoBoundingBoxCondition:
		pt, ok := geoValue(p.Payload, cond.Key)
		return ok &&
			pt.Lat <= cond.TopLeft.Lat && pt.Lat >= cond.BottomRight.Lat &&
			pt.Lon >= cond.TopLeft.Lon && pt.Lon <= cond.BottomRight.Lon
	case vectordb.TextCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		if !ok {
			return false
		}
		s, isStr := v.(string)
		return isStr && strings.Contains(s, cond.Text)
	case vectordb.ExistsCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		if !ok || v == nil {
			return false
		}
		if arr, isArr := v.([]any); isArr {
			return len(arr) > 0
		}
		return true
	case vectordb.IsNullCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		return ok && v == nil
	case vectordb.HasIDCondition:
		for _, id := range cond.IDs {
			if id.Key() == p.ID.Key() {
				return true
			}
		}
		return false
	case vectordb.NestedCondition:
		v, ok := payloadValue(p.Payload, cond.Key)
		if !ok {
			return false
		}
		elements, isArr := v.([]any)
		if !isArr {
			return false
		}
		for _, el := range elements {
			payload, isMap := el.(map[string]any)
			if !isMap {
				continue
			}
			if matchesFilter(vectordb.Point{ID: p.ID, Payload: payload}, cond.Filter) {
				return true
			}
		}
		return false
	case vectordb.SubFilterCondition:
		return matchesFilter(p, cond.Filter)
	case vectordb.FieldCondition:
		return evalFieldCondition(p, cond)
	default:
		return false
	}
}

func evalFieldCondition(p vectordb.Point, c vectordb.FieldCondition) bool {
	switch {
	case c.Match != nil:
		return evalCondition(p, vectordb.MatchCondition{Key: c.Key, Value: c.Match})
	case c.Range != nil:
		return evalCondition(p, vectordb.RangeCondition{Key: c.Key, Range: *c.Range})
	case c.Geo != nil:
		return evalCondition(p, vectordb.GeoRadiusCondition{Key: c.Key, Center: c.Geo.Center, Radius: c.Geo.Radius})
	default:
		return false
	}
}

// payloadValue resolves a possibly dotted key against a payload map.
func payloadValue(payload map[string]any, key string) (any, bool) {
	if payload == nil {
		return nil, false
	}
	parts := strings.Split(key, ".")
	var current any = payload
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// valueMatches compares a payload value to a condition value. Array payload
// fields match if any element matches, mirroring backend keyword-array
// semantics. Numeric comparison is type-insensitive.
func valueMatches(have, want any) bool {
	if arr, isArr := have.([]any); isArr {
		for _, el := range arr {
			if valueMatches(el, want) {
				return true
			}
		}
		return false
	}
	if hn, hok := toFloat(have); hok {
		if wn, wok := toFloat(want); wok {
			return hn == wn
		}
		return false
	}
	return have == want
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func inRange(n float64, r vectordb.Range) bool {
	if r.Gt != nil && !(n > *r.Gt) {
		return false
	}
	if r.Gte != nil && !(n >= *r.Gte) {
		return false
	}
	if r.Lt != nil && !(n < *r.Lt) {
		return false
	}
	if r.Lte != nil && !(n <= *r.Lte) {
		return false
	}
	return true
}

func inTimeRange(t time.Time, r vectordb.TimeRange) bool {
	if r.Gt != nil && !t.After(*r.Gt) {
		return false
	}
	if r.Gte != nil && t.Before(*r.Gte) {
		return false
	}
	if r.Lt != nil && !t.Before(*r.Lt) {
		return false
	}
	if r.Lte != nil && t.After(*r.Lte) {
		return false
	}
	return true
}

func geoValue(payload map[string]any, key string) (vectordb.GeoPoint, bool) {
	v, ok := payloadValue(payload, key)
	if !ok {
		return vectordb.GeoPoint{}, false
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		return vectordb.GeoPoint{}, false
	}
	lat, latOK := toFloat(m["lat"])
	lon, lonOK := toFloat(m["lon"])
	if !latOK || !lonOK {
		return vectordb.GeoPoint{}, false
	}
	return vectordb.GeoPoint{Lat: lat, Lon: lon}, true
}

const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two WGS84
// coordinates.
func haversineMeters(a, b vectordb.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// payloadNumber is used by scroll ordering.
func payloadNumber(payload map[string]any, key string) (float64, bool) {
	v, ok := payloadValue(payload, key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}
