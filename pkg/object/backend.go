package object

import "errors"

var (
	// ErrNotFound is returned when a requested object is absent from a store.
	ErrNotFound = errors.New("object not found")
	// ErrDecode is returned when stored bytes cannot be decoded as the
	// expected object type.
	ErrDecode = errors.New("object decode error")
	// ErrMalformedID is returned for IDs and ID prefixes that are not hex.
	ErrMalformedID = errors.New("malformed object id")
	// ErrAmbiguousID is returned when an abbreviated ID matches more than one
	// stored object.
	ErrAmbiguousID = errors.New("ambiguous object id")
)

// Backend persists raw object envelopes keyed by ID. Implementations never
// update a stored value in place; Put of an existing ID is a no-op.
//
// Backends must be safe for concurrent use.
type Backend interface {
	Exists(id ID) (bool, error)
	// Get returns the stored envelope, or an error wrapping ErrNotFound.
	Get(id ID) ([]byte, error)
	Put(id ID, raw []byte) error
	// Lookup returns every stored ID whose hex form starts with prefix.
	Lookup(prefix string) ([]ID, error)
	Delete(id ID) error
	Close() error
}

// Lister is implemented by backends that can enumerate their contents.
// Overlay promotion requires it of the front backend.
type Lister interface {
	ForEach(fn func(id ID, raw []byte) error) error
}
