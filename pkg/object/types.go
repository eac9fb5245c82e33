package object

import (
	"fmt"
	"math"
)

// Type identifies the kind of object stored. Values are part of the stored
// tree format and must not be renumbered.
type Type uint8

const (
	TypeCommit Type = 0
	TypeTree   Type = 1
	TypeBlob   Type = 2
	TypeTag    Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseType parses the name produced by Type.String.
func ParseType(s string) (Type, error) {
	switch s {
	case "commit":
		return TypeCommit, nil
	case "tree":
		return TypeTree, nil
	case "blob":
		return TypeBlob, nil
	case "tag":
		return TypeTag, nil
	default:
		return 0, fmt.Errorf("%w: unknown object type %q", ErrDecode, s)
	}
}

// RevObject is implemented by every stored object variant.
type RevObject interface {
	ObjectType() Type
	ObjectID() ID
}

// Person is an author, committer or tagger identity.
type Person struct {
	Name  string `cbor:"name"`
	Email string `cbor:"email"`
}

func (p Person) String() string {
	if p.Email == "" {
		return p.Name
	}
	return fmt.Sprintf("%s <%s>", p.Name, p.Email)
}

// Blob holds one record's canonical bytes.
type Blob struct {
	ID   ID `cbor:"-"`
	Data []byte
}

func (b *Blob) ObjectType() Type { return TypeBlob }
func (b *Blob) ObjectID() ID     { return b.ID }

// Commit points at a root tree and its parent commits.
type Commit struct {
	ID        ID     `cbor:"-"`
	TreeID    ID     `cbor:"tree"`
	Parents   []ID   `cbor:"parents,omitempty"`
	Author    Person `cbor:"author"`
	Committer Person `cbor:"committer"`
	Message   string `cbor:"message"`
	// Timestamp is in Unix milliseconds.
	Timestamp int64  `cbor:"ts"`
	Signature string `cbor:"sig,omitempty"`
}

func (c *Commit) ObjectType() Type { return TypeCommit }
func (c *Commit) ObjectID() ID     { return c.ID }

// FirstParent returns the first parent ID, or NullID for a root commit.
func (c *Commit) FirstParent() ID {
	if len(c.Parents) == 0 {
		return NullID
	}
	return c.Parents[0]
}

// Tag is an annotated, named pointer to another object.
type Tag struct {
	ID         ID     `cbor:"-"`
	Name       string `cbor:"name"`
	Target     ID     `cbor:"target"`
	TargetType Type   `cbor:"target_type"`
	Tagger     Person `cbor:"tagger"`
	Message    string `cbor:"message"`
	Timestamp  int64  `cbor:"ts"`
}

func (t *Tag) ObjectType() Type { return TypeTag }
func (t *Tag) ObjectID() ID     { return t.ID }

// Bounds is an axis-aligned bounding box attached to spatial entries.
type Bounds struct {
	MinX float64 `cbor:"minx"`
	MinY float64 `cbor:"miny"`
	MaxX float64 `cbor:"maxx"`
	MaxY float64 `cbor:"maxy"`
	CRS  string  `cbor:"crs,omitempty"`
}

// Valid reports whether the box has finite, ordered coordinates.
func (b Bounds) Valid() bool {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// NodeRef is one mapping inside a tree: a key, the object it names, optional
// metadata (e.g. a record schema) and optional spatial bounds. Inside a tree
// node Path is the key at that level; repository-level APIs return full
// slash-separated paths.
type NodeRef struct {
	Path       string  `cbor:"path"`
	ObjectID   ID      `cbor:"oid"`
	MetadataID ID      `cbor:"mid"`
	Type       Type    `cbor:"type"`
	Bounds     *Bounds `cbor:"bounds,omitempty"`
}

// IsSpatial reports whether the ref carries bounds.
func (r NodeRef) IsSpatial() bool {
	return r.Bounds != nil
}

// IsTombstone reports whether r marks a deletion (null object ID).
func (r NodeRef) IsTombstone() bool {
	return r.ObjectID.IsNull()
}

// Equal compares two refs field by field, including bounds.
func (r NodeRef) Equal(o NodeRef) bool {
	if r.Path != o.Path || r.ObjectID != o.ObjectID || r.MetadataID != o.MetadataID || r.Type != o.Type {
		return false
	}
	if r.Bounds == nil || o.Bounds == nil {
		return r.Bounds == nil && o.Bounds == nil
	}
	return *r.Bounds == *o.Bounds
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%s %s %s", r.Type, r.ObjectID.Short(), r.Path)
}

// TreeFormatVersion is the only tree encoding this package reads or writes.
const TreeFormatVersion uint8 = 1

// Bucket references the subtree holding every key hashed into Index at the
// owning node's depth. Size is the subtree's leaf-entry count.
type Bucket struct {
	Index uint32 `cbor:"i"`
	ID    ID     `cbor:"id"`
	Size  int64  `cbor:"n"`
}

// TreeObj is the persisted form of one hash-tree node. A normalized node holds
// either entries (sorted by Path) or buckets (sorted by Index), never both.
type TreeObj struct {
	ID      ID        `cbor:"-"`
	Version uint8     `cbor:"v"`
	Entries []NodeRef `cbor:"entries,omitempty"`
	Buckets []Bucket  `cbor:"buckets,omitempty"`
}

func (t *TreeObj) ObjectType() Type { return TypeTree }
func (t *TreeObj) ObjectID() ID     { return t.ID }

// Size returns the number of leaf entries reachable from this node.
func (t *TreeObj) Size() int64 {
	n := int64(len(t.Entries))
	for _, b := range t.Buckets {
		n += b.Size
	}
	return n
}
