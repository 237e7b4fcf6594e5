package vectordb

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Distance is the similarity metric fixed per collection at creation time.
type Distance string

const (
	DistanceCosine    Distance = "Cosine"
	DistanceEuclid    Distance = "Euclid"
	DistanceDot       Distance = "Dot"
	DistanceManhattan Distance = "Manhattan"
)

// PayloadFieldType is the index type for a payload field. Ordered scrolls
// and efficient range filters require an index on the field involved.
type PayloadFieldType string

const (
	PayloadFieldKeyword  PayloadFieldType = "keyword"
	PayloadFieldInteger  PayloadFieldType = "integer"
	PayloadFieldFloat    PayloadFieldType = "float"
	PayloadFieldBool     PayloadFieldType = "bool"
	PayloadFieldDatetime PayloadFieldType = "datetime"
	PayloadFieldGeo      PayloadFieldType = "geo"
	PayloadFieldText     PayloadFieldType = "text"
)

// PointID identifies a point as either an unsigned integer or a UUID string.
// Exactly one of the two representations is set.
type PointID struct {
	num  uint64
	uuid string
	// isNum disambiguates the zero numeric id from an unset one.
	isNum bool
}

// NewIDNum returns a numeric point id.
func NewIDNum(n uint64) PointID {
	return PointID{num: n, isNum: true}
}

// NewID returns a UUID-string point id.
func NewID(uuid string) PointID {
	return PointID{uuid: uuid}
}

// NewRandomID returns a freshly generated UUIDv4 point id, for callers that
// do not manage their own id space.
func NewRandomID() PointID {
	return PointID{uuid: uuid.NewString()}
}

// Num returns the numeric id and whether this id is numeric.
func (id PointID) Num() (uint64, bool) {
	return id.num, id.isNum
}

// UUID returns the UUID string and whether this id is a UUID.
func (id PointID) UUID() (string, bool) {
	return id.uuid, !id.isNum
}

// IsZero reports whether the id is entirely unset.
func (id PointID) IsZero() bool {
	return !id.isNum && id.uuid == ""
}

// Key returns a deterministic ordering key for the id. Numeric ids are
// zero-padded so their lexicographic order matches numeric order, and sort
// before UUID ids. Used as the tie-break when two results carry an
// identical score.
func (id PointID) Key() string {
	if id.isNum {
		return fmt.Sprintf("n%020d", id.num)
	}
	return "u" + id.uuid
}

// String renders the id for logs and error messages.
func (id PointID) String() string {
	if id.isNum {
		return strconv.FormatUint(id.num, 10)
	}
	return id.uuid
}

// SparseVector represents only the nonzero dimensions of a vector as
// parallel (index, value) slices. Used for lexical/BM25-style signals.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Vector is a dense vector, a sparse vector, or a map of named dense
// vectors for multi-vector collections. At most one representation is set.
type Vector struct {
	Dense  []float32            `json:"dense,omitempty"`
	Sparse *SparseVector        `json:"sparse,omitempty"`
	Named  map[string][]float32 `json:"named,omitempty"`
}

// NewVector wraps a dense vector.
func NewVector(values ...float32) Vector {
	return Vector{Dense: values}
}

// NewSparseVector wraps parallel (index, value) slices.
func NewSparseVector(indices []uint32, values []float32) Vector {
	return Vector{Sparse: &SparseVector{Indices: indices, Values: values}}
}

// NewNamedVectors wraps a map of named dense vectors.
func NewNamedVectors(vectors map[string][]float32) Vector {
	return Vector{Named: vectors}
}

// IsZero reports whether no representation is set.
func (v Vector) IsZero() bool {
	return len(v.Dense) == 0 && v.Sparse == nil && len(v.Named) == 0
}

// Point is a stored item: an id, one or more vectors, and an optional
// string-keyed payload.
type Point struct {
	ID      PointID        `json:"id"`
	Vectors Vector         `json:"vectors"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a Point paired with a similarity score. Produced only by
// search operations, never persisted.
type ScoredPoint struct {
	ID      PointID        `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
	Vector  []float32      `json:"vector,omitempty"`
}

// SearchRequest is a single similarity query. Created per call, never reused.
type SearchRequest struct {
	// CollectionName is the target collection.
	CollectionName string `json:"collectionName"`

	// Vector is the query vector (dense, sparse, or named).
	Vector Vector `json:"vector"`

	// Using selects a named vector on multi-vector collections. Empty
	// targets the default (unnamed) vector.
	Using string `json:"using,omitempty"`

	// Limit is the maximum number of results.
	Limit uint64 `json:"limit"`

	// Offset skips the first results, for pagination.
	Offset uint64 `json:"offset,omitempty"`

	// Filter restricts candidates. Nil means unrestricted.
	Filter *Filter `json:"filter,omitempty"`

	// ScoreThreshold drops results scoring below it.
	ScoreThreshold *float32 `json:"scoreThreshold,omitempty"`

	// Ef is the HNSW search-effort parameter (index traversal breadth).
	// Zero leaves the backend default in place.
	Ef uint64 `json:"ef,omitempty"`

	// WithPayload requests payloads on results.
	WithPayload bool `json:"withPayload"`

	// WithVectors requests stored vectors on results.
	WithVectors bool `json:"withVectors"`
}

// OrderBy orders scroll results by a payload field.
type OrderBy struct {
	Key       string `json:"key"`
	Ascending bool   `json:"ascending"`
}

// ScrollRequest pages through points matching a filter, without scoring.
type ScrollRequest struct {
	CollectionName string   `json:"collectionName"`
	Filter         *Filter  `json:"filter,omitempty"`
	Limit          uint64   `json:"limit"`
	Offset         uint64   `json:"offset,omitempty"`
	OrderBy        *OrderBy `json:"orderBy,omitempty"`
	WithPayload    bool     `json:"withPayload"`
	WithVectors    bool     `json:"withVectors"`
}

// Collection contains metadata about a vector collection.
type Collection struct {
	// Name is the unique identifier of the collection.
	Name string `json:"name"`

	// Status indicates the operational state (e.g. "Green", "Yellow").
	Status string `json:"status"`

	// VectorSize is the dimension of the default dense vector.
	VectorSize uint64 `json:"vectorSize"`

	// Distance is the similarity metric fixed at creation time.
	Distance Distance `json:"distance"`

	// VectorCount is the number of indexed vectors.
	VectorCount uint64 `json:"vectorCount"`

	// PointCount is the number of stored points.
	PointCount uint64 `json:"pointCount"`
}
