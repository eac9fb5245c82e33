// Package record converts user-supplied YAML or JSON documents into the
// canonical bytes stored as blobs, and extracts the spatial bounds and
// schema attached to a record's tree entry.
package record

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/strata/pkg/object"
)

var (
	ErrInvalidRecord = errors.New("invalid record")
	ErrInvalidBounds = errors.New("invalid bounds")
)

// Field names with special meaning.
const (
	BBoxField = "bbox"
	CRSField  = "crs"
)

// Record is a mapping of field names to scalar, list or nested mapping
// values. Integers are held as int64 (or uint64 when they do not fit),
// reals as float64.
type Record struct {
	Fields map[string]any
}

// Parse reads a YAML document (JSON is accepted as a subset). The top
// level must be a mapping with string keys.
func Parse(data []byte) (*Record, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return fromValue(raw)
}

// Decode reads canonical bytes produced by Encode.
func Decode(data []byte) (*Record, error) {
	var raw any
	if err := object.UnmarshalCanonical(data, &raw); err != nil {
		return nil, fmt.Errorf("decode record: %w: %v", object.ErrDecode, err)
	}
	r, err := fromValue(raw)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w: %v", object.ErrDecode, err)
	}
	return r, nil
}

func fromValue(raw any) (*Record, error) {
	if raw == nil {
		return &Record{Fields: map[string]any{}}, nil
	}
	v, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %T, want a mapping", ErrInvalidRecord, raw)
	}
	return &Record{Fields: fields}, nil
}

// normalize maps decoder output onto the value set a Record holds, so that
// parsing and decoding produce identical Records.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), nil
		}
		return x, nil
	case float32:
		return float64(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case []byte:
		return string(x), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key %v", ErrInvalidRecord, k)
			}
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value of type %T", ErrInvalidRecord, v)
	}
}

// Encode returns the canonical CBOR form of the record. Equal records
// always encode to equal bytes, whatever their source formatting.
func (r *Record) Encode() ([]byte, error) {
	fields := r.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := object.MarshalCanonical(fields)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// YAML renders the record for display. Keys are sorted.
func (r *Record) YAML() ([]byte, error) {
	return yaml.Marshal(r.Fields)
}

// Schema returns the sorted field names.
func (r *Record) Schema() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// EncodeSchema returns the canonical bytes of a schema, for storing as the
// metadata blob of records that share it.
func EncodeSchema(fields []string) ([]byte, error) {
	return object.MarshalCanonical(fields)
}

// Bounds returns the record's bounding box from a "bbox: [minx, miny, maxx,
// maxy]" field, with the CRS from an optional "crs" string field. It
// returns nil when the record has no bbox.
func (r *Record) Bounds() (*object.Bounds, error) {
	raw, ok := r.Fields[BBoxField]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok || len(list) != 4 {
		return nil, fmt.Errorf("%w: bbox must be a list of 4 numbers", ErrInvalidBounds)
	}
	var c [4]float64
	for i, e := range list {
		switch n := e.(type) {
		case int64:
			c[i] = float64(n)
		case uint64:
			c[i] = float64(n)
		case float64:
			c[i] = n
		default:
			return nil, fmt.Errorf("%w: bbox[%d] is %T", ErrInvalidBounds, i, e)
		}
	}
	b := &object.Bounds{MinX: c[0], MinY: c[1], MaxX: c[2], MaxY: c[3]}
	if crs, ok := r.Fields[CRSField]; ok {
		s, ok := crs.(string)
		if !ok {
			return nil, fmt.Errorf("%w: crs must be a string", ErrInvalidBounds)
		}
		b.CRS = s
	}
	if !b.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBounds, list)
	}
	return b, nil
}

// Ref builds the tree entry for a record stored as blobID at path.
// schemaID may be NullID.
func (r *Record) Ref(path string, blobID, schemaID object.ID) (object.NodeRef, error) {
	b, err := r.Bounds()
	if err != nil {
		return object.NodeRef{}, fmt.Errorf("record %s: %w", path, err)
	}
	return object.NodeRef{
		Path:       path,
		ObjectID:   blobID,
		MetadataID: schemaID,
		Type:       object.TypeBlob,
		Bounds:     b,
	}, nil
}
