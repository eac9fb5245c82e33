package object

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/metrics"
)

// MinPrefixLen is the shortest abbreviated ID accepted by ResolvePrefix.
const MinPrefixLen = 4

// Store is the content-addressed object store. It encodes objects into
// envelopes, derives their IDs and delegates persistence to a Backend.
type Store struct {
	backend Backend
	metrics *metrics.Collector
}

// NewStore wraps backend. collector may be nil.
func NewStore(backend Backend, collector *metrics.Collector) *Store {
	return &Store{backend: backend, metrics: collector}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Exists reports whether the store contains an object with the given ID.
func (s *Store) Exists(id ID) (bool, error) {
	if id == emptyTreeID {
		return true, nil
	}
	return s.backend.Exists(id)
}

// Write stores an object and returns its content ID. Writing content that is
// already present is a no-op.
func (s *Store) Write(objType Type, data []byte) (ID, error) {
	id := HashObject(objType, data)
	ok, err := s.backend.Exists(id)
	if err != nil {
		return NullID, fmt.Errorf("object write %s: %w", id, err)
	}
	if ok {
		s.metrics.ObjectWrite(objType.String(), false, 0)
		return id, nil
	}
	raw := encodeEnvelope(objType, data)
	if err := s.backend.Put(id, raw); err != nil {
		return NullID, fmt.Errorf("object write %s: %w", id, err)
	}
	s.metrics.ObjectWrite(objType.String(), true, len(raw))
	return id, nil
}

// Read retrieves an object by ID, returning its type and content. The empty
// tree is always readable, stored or not.
func (s *Store) Read(id ID) (Type, []byte, error) {
	raw, err := s.backend.Get(id)
	if err != nil {
		if id == emptyTreeID && errors.Is(err, ErrNotFound) {
			data, _ := MarshalTree(&TreeObj{})
			return TypeTree, data, nil
		}
		s.metrics.ObjectRead("unknown", false)
		return 0, nil, err
	}
	objType, content, err := decodeEnvelope(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", id, err)
	}
	s.metrics.ObjectRead(objType.String(), true)
	return objType, content, nil
}

// Put encodes obj, stores it and sets its ID field.
func (s *Store) Put(obj RevObject) (ID, error) {
	switch o := obj.(type) {
	case *Blob:
		return s.WriteBlob(o)
	case *TreeObj:
		return s.WriteTree(o)
	case *Commit:
		return s.WriteCommit(o)
	case *Tag:
		return s.WriteTag(o)
	default:
		return NullID, fmt.Errorf("object put: unsupported type %T", obj)
	}
}

// Get reads any object and decodes it according to its stored type.
func (s *Store) Get(id ID) (RevObject, error) {
	objType, data, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	switch objType {
	case TypeBlob:
		b, err := UnmarshalBlob(data)
		if err != nil {
			return nil, err
		}
		b.ID = id
		return b, nil
	case TypeTree:
		return decodeTree(id, data)
	case TypeCommit:
		return decodeCommit(id, data)
	case TypeTag:
		return decodeTag(id, data)
	default:
		return nil, fmt.Errorf("object %s: %w: unknown type %s", id, ErrDecode, objType)
	}
}

func (s *Store) readTyped(id ID, want Type) ([]byte, error) {
	objType, data, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: %w: type mismatch: got %s, want %s", id, ErrDecode, objType, want)
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (ID, error) {
	id, err := s.Write(TypeBlob, MarshalBlob(b))
	if err == nil {
		b.ID = id
	}
	return id, err
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(id ID) (*Blob, error) {
	data, err := s.readTyped(id, TypeBlob)
	if err != nil {
		return nil, err
	}
	b, err := UnmarshalBlob(data)
	if err != nil {
		return nil, err
	}
	b.ID = id
	return b, nil
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (ID, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return NullID, err
	}
	id, err := s.Write(TypeTree, data)
	if err == nil {
		tr.ID = id
	}
	return id, err
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(id ID) (*TreeObj, error) {
	data, err := s.readTyped(id, TypeTree)
	if err != nil {
		return nil, err
	}
	return decodeTree(id, data)
}

// WriteCommit serializes and stores a Commit.
func (s *Store) WriteCommit(c *Commit) (ID, error) {
	data, err := MarshalCommit(c)
	if err != nil {
		return NullID, err
	}
	id, err := s.Write(TypeCommit, data)
	if err == nil {
		c.ID = id
	}
	return id, err
}

// ReadCommit reads and deserializes a Commit.
func (s *Store) ReadCommit(id ID) (*Commit, error) {
	data, err := s.readTyped(id, TypeCommit)
	if err != nil {
		return nil, err
	}
	return decodeCommit(id, data)
}

// WriteTag serializes and stores a Tag.
func (s *Store) WriteTag(t *Tag) (ID, error) {
	data, err := MarshalTag(t)
	if err != nil {
		return NullID, err
	}
	id, err := s.Write(TypeTag, data)
	if err == nil {
		t.ID = id
	}
	return id, err
}

// ReadTag reads and deserializes a Tag.
func (s *Store) ReadTag(id ID) (*Tag, error) {
	data, err := s.readTyped(id, TypeTag)
	if err != nil {
		return nil, err
	}
	return decodeTag(id, data)
}

func decodeTree(id ID, data []byte) (*TreeObj, error) {
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	tr.ID = id
	return tr, nil
}

func decodeCommit(id ID, data []byte) (*Commit, error) {
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	c.ID = id
	return c, nil
}

func decodeTag(id ID, data []byte) (*Tag, error) {
	t, err := UnmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	t.ID = id
	return t, nil
}

// ---------------------------------------------------------------------------
// Abbreviated IDs
// ---------------------------------------------------------------------------

// Lookup returns every stored ID starting with the hex prefix.
func (s *Store) Lookup(prefix string) ([]ID, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if !validPrefix(prefix) {
		return nil, fmt.Errorf("lookup %q: %w", prefix, ErrMalformedID)
	}
	return s.backend.Lookup(prefix)
}

// ResolvePrefix expands an abbreviated ID to the single stored ID it names.
func (s *Store) ResolvePrefix(prefix string) (ID, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < MinPrefixLen {
		return NullID, fmt.Errorf("resolve %q: %w: need at least %d hex characters", prefix, ErrMalformedID, MinPrefixLen)
	}
	if len(prefix) == IDSize*2 {
		id, err := ParseID(prefix)
		if err != nil {
			return NullID, err
		}
		ok, err := s.Exists(id)
		if err != nil {
			return NullID, err
		}
		if !ok {
			return NullID, fmt.Errorf("resolve %s: %w", id, ErrNotFound)
		}
		return id, nil
	}
	ids, err := s.Lookup(prefix)
	if err != nil {
		return NullID, err
	}
	switch len(ids) {
	case 0:
		return NullID, fmt.Errorf("resolve %q: %w", prefix, ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return NullID, fmt.Errorf("resolve %q: %w: %d candidates", prefix, ErrAmbiguousID, len(ids))
	}
}

// EmptyTreeID returns the ID of the empty tree. It is readable from every
// store without being written.
func (s *Store) EmptyTreeID() ID { return emptyTreeID }

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

// Metrics returns the collector passed to NewStore, possibly nil.
func (s *Store) Metrics() *metrics.Collector { return s.metrics }
