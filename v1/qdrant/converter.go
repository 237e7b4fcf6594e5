package qdrant

import (
	"fmt"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/arcadialab/vecengine/v1/vectordb"
)

//
// ──────────────────────────────────────────────────────────────
//   WIRE CONVERSION
// ──────────────────────────────────────────────────────────────
//
// Translation between the engine's domain types and Qdrant's protobuf
// messages. All conversion lives here so the client file stays readable
// and the SDK types never leak above this package.
//

// ── Point IDs ────────────────────────────────────────────────────────────────

func toPointID(id vectordb.PointID) *qdrant.PointId {
	if n, ok := id.Num(); ok {
		return qdrant.NewIDNum(n)
	}
	u, _ := id.UUID()
	return qdrant.NewID(u)
}

func fromPointID(id *qdrant.PointId) (vectordb.PointID, error) {
	if id == nil {
		return vectordb.PointID{}, fmt.Errorf("qdrant: nil point id")
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Num:
		return vectordb.NewIDNum(v.Num), nil
	case *qdrant.PointId_Uuid:
		return vectordb.NewID(v.Uuid), nil
	default:
		return vectordb.PointID{}, fmt.Errorf("qdrant: unexpected PointId type: %T", v)
	}
}

func toPointIDs(ids []vectordb.PointID) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, toPointID(id))
	}
	return out
}

// ── Vectors ──────────────────────────────────────────────────────────────────

// toQuery turns a query vector into Qdrant's universal query message. For
// named multi-vector collections the target vector is picked by `using`, or
// taken directly when the map has exactly one entry.
func toQuery(v vectordb.Vector, using string) (*qdrant.Query, error) {
	switch {
	case len(v.Dense) > 0:
		return qdrant.NewQuery(v.Dense...), nil
	case v.Sparse != nil:
		return &qdrant.Query{
			Variant: &qdrant.Query_Nearest{
				Nearest: &qdrant.VectorInput{
					Variant: &qdrant.VectorInput_Sparse{
						Sparse: &qdrant.SparseVector{
							Values:  v.Sparse.Values,
							Indices: v.Sparse.Indices,
						},
					},
				},
			},
		}, nil
	case len(v.Named) > 0:
		if using != "" {
			if dense, ok := v.Named[using]; ok {
				return qdrant.NewQuery(dense...), nil
			}
			return nil, fmt.Errorf("qdrant: query has no named vector %q", using)
		}
		if len(v.Named) == 1 {
			for _, dense := range v.Named {
				return qdrant.NewQuery(dense...), nil
			}
		}
		return nil, fmt.Errorf("qdrant: named query vector requires Using")
	default:
		return nil, vectordb.ErrEmptyVector
	}
}

// toVectors converts stored point vectors for upsert.
func toVectors(v vectordb.Vector) *qdrant.Vectors {
	switch {
	case len(v.Named) > 0:
		named := make(map[string]*qdrant.Vector, len(v.Named))
		for name, dense := range v.Named {
			named[name] = &qdrant.Vector{Data: dense}
		}
		return &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vectors{
				Vectors: &qdrant.NamedVectors{Vectors: named},
			},
		}
	case v.Sparse != nil:
		return &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{
					Data:    v.Sparse.Values,
					Indices: &qdrant.SparseIndices{Data: v.Sparse.Indices},
				},
			},
		}
	default:
		return qdrant.NewVectors(v.Dense...)
	}
}

// denseFromOutput extracts a dense vector from a search or retrieve result.
// For named outputs the vector selected by `using` wins; an empty `using`
// falls back to a single-entry map's only vector.
func denseFromOutput(out *qdrant.VectorsOutput, using string) []float32 {
	if out == nil {
		return nil
	}
	switch opt := out.VectorsOptions.(type) {
	case *qdrant.VectorsOutput_Vector:
		return denseFromVectorOutput(opt.Vector)
	case *qdrant.VectorsOutput_Vectors:
		if opt.Vectors == nil {
			return nil
		}
		if using != "" {
			return denseFromVectorOutput(opt.Vectors.Vectors[using])
		}
		if len(opt.Vectors.Vectors) == 1 {
			for _, v := range opt.Vectors.Vectors {
				return denseFromVectorOutput(v)
			}
		}
	}
	return nil
}

func denseFromVectorOutput(v *qdrant.VectorOutput) []float32 {
	if v == nil {
		return nil
	}
	if dense := v.GetDense(); dense != nil && len(dense.Data) > 0 {
		return dense.Data
	}
	// Legacy servers put the data on the message itself.
	return v.Data
}

// ── Filters ──────────────────────────────────────────────────────────────────

// toFilter converts a domain filter tree to Qdrant's filter message.
// A nil filter stays nil (unrestricted).
func toFilter(f *vectordb.Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	out := &qdrant.Filter{
		Must:    toConditions(f.Must),
		Should:  toConditions(f.Should),
		MustNot: toConditions(f.MustNot),
	}
	if f.MinShould != nil {
		out.MinShould = &qdrant.MinShould{MinCount: *f.MinShould}
	}
	return out
}

func toConditions(conds []vectordb.Condition) []*qdrant.Condition {
	out := make([]*qdrant.Condition, 0, len(conds))
	for _, c := range conds {
		if qc := toCondition(c); qc != nil {
			out = append(out, qc)
		}
	}
	return out
}

func toCondition(c vectordb.Condition) *qdrant.Condition {
	switch cond := c.(type) {
	case vectordb.MatchCondition:
		return toMatchCondition(cond)
	case vectordb.MatchAnyCondition:
		return toMatchAnyCondition(cond)
	case vectordb.RangeCondition:
		if cond.Range.IsZero() {
			return nil
		}
		return qdrant.NewRange(cond.Key, &qdrant.Range{
			Gt:  cond.Range.Gt,
			Gte: cond.Range.Gte,
			Lt:  cond.Range.Lt,
			Lte: cond.Range.Lte,
		})
	case vectordb.DatetimeRangeCondition:
		if cond.Range.IsZero() {
			return nil
		}
		return qdrant.NewDatetimeRange(cond.Key, &qdrant.DatetimeRange{
			Gt:  toTimestamp(cond.Range.Gt),
			Gte: toTimestamp(cond.Range.Gte),
			Lt:  toTimestamp(cond.Range.Lt),
			Lte: toTimestamp(cond.Range.Lte),
		})
	case vectordb.TextCondition:
		return fieldCondition(&qdrant.FieldCondition{
			Key:   cond.Key,
			Match: &qdrant.Match{MatchValue: &qdrant.Match_Text{Text: cond.Text}},
		})
	case vectordb.GeoRadiusCondition:
		return fieldCondition(&qdrant.FieldCondition{
			Key: cond.Key,
			GeoRadius: &qdrant.GeoRadius{
				Center: &qdrant.GeoPoint{Lat: cond.Center.Lat, Lon: cond.Center.Lon},
				Radius: float32(cond.Radius),
			},
		})
	case vectordb.GeoBoundingBoxCondition:
		return fieldCondition(&qdrant.FieldCondition{
			Key: cond.Key,
			GeoBoundingBox: &qdrant.GeoBoundingBox{
				TopLeft:     &qdrant.GeoPoint{Lat: cond.TopLeft.Lat, Lon: cond.TopLeft.Lon},
				BottomRight: &qdrant.GeoPoint{Lat: cond.BottomRight.Lat, Lon: cond.BottomRight.Lon},
			},
		})
	case vectordb.ExistsCondition:
		// Qdrant has no direct "exists", so present-and-non-empty is
		// expressed as the negation of is-empty.
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{
				Filter: &qdrant.Filter{
					MustNot: []*qdrant.Condition{qdrant.NewIsEmpty(cond.Key)},
				},
			},
		}
	case vectordb.IsNullCondition:
		return qdrant.NewIsNull(cond.Key)
	case vectordb.HasIDCondition:
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_HasId{
				HasId: &qdrant.HasIdCondition{HasId: toPointIDs(cond.IDs)},
			},
		}
	case vectordb.NestedCondition:
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Nested{
				Nested: &qdrant.NestedCondition{
					Key:    cond.Key,
					Filter: toFilter(cond.Filter),
				},
			},
		}
	case vectordb.SubFilterCondition:
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{Filter: toFilter(cond.Filter)},
		}
	case vectordb.FieldCondition:
		switch {
		case cond.Match != nil:
			return toMatchCondition(vectordb.MatchCondition{Key: cond.Key, Value: cond.Match})
		case cond.Range != nil:
			return toCondition(vectordb.RangeCondition{Key: cond.Key, Range: *cond.Range})
		case cond.Geo != nil:
			return toCondition(vectordb.GeoRadiusCondition{
				Key:    cond.Key,
				Center: cond.Geo.Center,
				Radius: cond.Geo.Radius,
			})
		}
		return nil
	default:
		return nil
	}
}

func toMatchCondition(c vectordb.MatchCondition) *qdrant.Condition {
	switch v := c.Value.(type) {
	case string:
		return qdrant.NewMatch(c.Key, v)
	case bool:
		return qdrant.NewMatchBool(c.Key, v)
	case int:
		return qdrant.NewMatchInt(c.Key, int64(v))
	case int64:
		return qdrant.NewMatchInt(c.Key, v)
	case float64:
		// JSON numbers decode as float64; integral values match as ints.
		return qdrant.NewMatchInt(c.Key, int64(v))
	default:
		return nil
	}
}

func toMatchAnyCondition(c vectordb.MatchAnyCondition) *qdrant.Condition {
	if len(c.Values) == 0 {
		return nil
	}
	switch c.Values[0].(type) {
	case string:
		strs := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		return qdrant.NewMatchKeywords(c.Key, strs...)
	case int, int64, float64:
		ints := make([]int64, 0, len(c.Values))
		for _, v := range c.Values {
			switch n := v.(type) {
			case int:
				ints = append(ints, int64(n))
			case int64:
				ints = append(ints, n)
			case float64:
				ints = append(ints, int64(n))
			}
		}
		return qdrant.NewMatchInts(c.Key, ints...)
	}
	return nil
}

func fieldCondition(fc *qdrant.FieldCondition) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: fc}}
}

func toTimestamp(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return timestamppb.New(*t)
}

// ── Requests ─────────────────────────────────────────────────────────────────

func toQueryPoints(req vectordb.SearchRequest) (*qdrant.QueryPoints, error) {
	query, err := toQuery(req.Vector, req.Using)
	if err != nil {
		return nil, err
	}

	out := &qdrant.QueryPoints{
		CollectionName: req.CollectionName,
		Query:          query,
		Filter:         toFilter(req.Filter),
		WithPayload:    qdrant.NewWithPayload(req.WithPayload),
		WithVectors:    withVectorsSelector(req.WithVectors),
		ScoreThreshold: req.ScoreThreshold,
	}
	if req.Limit > 0 {
		limit := req.Limit
		out.Limit = &limit
	}
	if req.Offset > 0 {
		offset := req.Offset
		out.Offset = &offset
	}
	if req.Using != "" {
		using := req.Using
		out.Using = &using
	}
	if req.Ef > 0 {
		ef := req.Ef
		out.Params = &qdrant.SearchParams{HnswEf: &ef}
	}
	return out, nil
}

// toScrollPoints converts a scroll request. The wire protocol paginates with
// an opaque point-id cursor rather than a numeric offset, so offset-based
// pagination is encoded in the filter by callers; the numeric Offset field
// only applies to the simulation backend.
func toScrollPoints(req vectordb.ScrollRequest) *qdrant.ScrollPoints {
	out := &qdrant.ScrollPoints{
		CollectionName: req.CollectionName,
		Filter:         toFilter(req.Filter),
		WithPayload:    qdrant.NewWithPayload(req.WithPayload),
		WithVectors:    withVectorsSelector(req.WithVectors),
	}
	if req.Limit > 0 {
		limit := uint32(req.Limit)
		out.Limit = &limit
	}
	if req.OrderBy != nil {
		direction := qdrant.Direction_Desc
		if req.OrderBy.Ascending {
			direction = qdrant.Direction_Asc
		}
		out.OrderBy = &qdrant.OrderBy{
			Key:       req.OrderBy.Key,
			Direction: &direction,
		}
	}
	return out
}

func withVectorsSelector(enable bool) *qdrant.WithVectorsSelector {
	return &qdrant.WithVectorsSelector{
		SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: enable},
	}
}

func toPointStructs(points []vectordb.Point) []*qdrant.PointStruct {
	out := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		out = append(out, &qdrant.PointStruct{
			Id:      toPointID(p.ID),
			Vectors: toVectors(p.Vectors),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	return out
}

// ── Results ──────────────────────────────────────────────────────────────────

func fromScoredPoints(resp []*qdrant.ScoredPoint, using string) ([]vectordb.ScoredPoint, error) {
	out := make([]vectordb.ScoredPoint, 0, len(resp))
	for _, r := range resp {
		id, err := fromPointID(r.Id)
		if err != nil {
			return nil, err
		}
		out = append(out, vectordb.ScoredPoint{
			ID:      id,
			Score:   r.Score,
			Payload: fromPayload(r.Payload),
			Vector:  denseFromOutput(r.Vectors, using),
		})
	}
	return out, nil
}

func fromRetrievedPoints(resp []*qdrant.RetrievedPoint) ([]vectordb.Point, error) {
	out := make([]vectordb.Point, 0, len(resp))
	for _, r := range resp {
		id, err := fromPointID(r.Id)
		if err != nil {
			return nil, err
		}
		point := vectordb.Point{
			ID:      id,
			Payload: fromPayload(r.Payload),
		}
		if dense := denseFromOutput(r.Vectors, ""); len(dense) > 0 {
			point.Vectors = vectordb.NewVector(dense...)
		}
		out = append(out, point)
	}
	return out, nil
}

// fromPayload converts Qdrant's protobuf payload to a generic map.
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

// fromValue recursively converts a Qdrant Value to a Go native type.
func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_StructValue:
		if val.StructValue == nil {
			return nil
		}
		return fromPayload(val.StructValue.Fields)
	case *qdrant.Value_ListValue:
		if val.ListValue == nil {
			return nil
		}
		items := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			items[i] = fromValue(item)
		}
		return items
	default:
		return nil
	}
}

// fromCollectionInfo maps Qdrant collection metadata to the domain type.
func fromCollectionInfo(name string, info *qdrant.CollectionInfo) *vectordb.Collection {
	out := &vectordb.Collection{
		Name:        name,
		Status:      info.Status.String(),
		VectorCount: derefUint64(info.IndexedVectorsCount),
		PointCount:  derefUint64(info.PointsCount),
	}
	out.VectorSize, out.Distance = vectorDetails(info)
	return out
}

// vectorDetails navigates the nested oneof wrappers around the default
// vector's configuration, guarding every step against nil.
func vectorDetails(info *qdrant.CollectionInfo) (uint64, vectordb.Distance) {
	if info == nil ||
		info.Config == nil ||
		info.Config.Params == nil ||
		info.Config.Params.VectorsConfig == nil ||
		info.Config.Params.VectorsConfig.Config == nil {
		return 0, ""
	}
	if cfg, ok := info.Config.Params.VectorsConfig.Config.(*qdrant.VectorsConfig_Params); ok {
		return cfg.Params.Size, fromDistance(cfg.Params.Distance)
	}
	return 0, ""
}

func fromDistance(d qdrant.Distance) vectordb.Distance {
	switch d {
	case qdrant.Distance_Cosine:
		return vectordb.DistanceCosine
	case qdrant.Distance_Euclid:
		return vectordb.DistanceEuclid
	case qdrant.Distance_Dot:
		return vectordb.DistanceDot
	case qdrant.Distance_Manhattan:
		return vectordb.DistanceManhattan
	default:
		return ""
	}
}

func toDistance(d vectordb.Distance) qdrant.Distance {
	switch d {
	case vectordb.DistanceEuclid:
		return qdrant.Distance_Euclid
	case vectordb.DistanceDot:
		return qdrant.Distance_Dot
	case vectordb.DistanceManhattan:
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

func toFieldType(t vectordb.PayloadFieldType) qdrant.FieldType {
	switch t {
	case vectordb.PayloadFieldInteger:
		return qdrant.FieldType_FieldTypeInteger
	case vectordb.PayloadFieldFloat:
		return qdrant.FieldType_FieldTypeFloat
	case vectordb.PayloadFieldBool:
		return qdrant.FieldType_FieldTypeBool
	case vectordb.PayloadFieldDatetime:
		return qdrant.FieldType_FieldTypeDatetime
	case vectordb.PayloadFieldGeo:
		return qdrant.FieldType_FieldTypeGeo
	case vectordb.PayloadFieldText:
		return qdrant.FieldType_FieldTypeText
	default:
		return qdrant.FieldType_FieldTypeKeyword
	}
}

// derefUint64 safely dereferences a *uint64 pointer, returning 0 when nil.
func derefUint64(v *uint64) uint64 {
	if v != nil {
		return *v
	}
	return 0
}
