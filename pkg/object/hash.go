package object

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// IDSize is the width of an object ID in bytes.
const IDSize = 32

// ID is the content hash of an object's canonical envelope. Two objects with
// identical logical content always have the same ID.
type ID [IDSize]byte

// NullID is the all-zero ID. It never names a stored object; refs and tree
// entries use it to mean "nothing".
var NullID ID

// IsNull reports whether id is the NullID.
func (id ID) IsNull() bool {
	return id == NullID
}

// String returns the lowercase hex form of id.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters of id.
func (id ID) Short() string {
	return id.String()[:8]
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID parses a full-width hex object ID.
func ParseID(s string) (ID, error) {
	var id ID
	s = strings.TrimSpace(s)
	if len(s) != IDSize*2 {
		return id, fmt.Errorf("parse id %q: %w: want %d hex characters", s, ErrMalformedID, IDSize*2)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("parse id %q: %w: %v", s, ErrMalformedID, err)
	}
	return id, nil
}

// validPrefix reports whether p is a (possibly odd-length) lowercase hex
// prefix no longer than a full ID.
func validPrefix(p string) bool {
	if len(p) > IDSize*2 {
		return false
	}
	for i := 0; i < len(p); i++ {
		c := p[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// HashBytes computes the raw BLAKE3 hash of data.
func HashBytes(data []byte) ID {
	return ID(blake3.Sum256(data))
}

// HashObject computes the ID of the envelope "type len\0content".
func HashObject(objType Type, data []byte) ID {
	h := blake3.New()
	h.Write(envelopeHeader(objType, len(data)))
	h.Write(data)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// ForString hashes a string as if it were blob content. Handy for building
// deterministic fixture IDs.
func ForString(s string) ID {
	return HashObject(TypeBlob, []byte(s))
}

func envelopeHeader(objType Type, n int) []byte {
	header := make([]byte, 0, 16)
	header = append(header, objType.String()...)
	header = append(header, ' ')
	header = strconv.AppendInt(header, int64(n), 10)
	return append(header, 0)
}

// HasPrefix reports whether the hex form of id starts with prefix.
func (id ID) HasPrefix(prefix string) bool {
	return strings.HasPrefix(id.String(), prefix)
}

// SeekPrefix returns the raw bytes covered by the whole-byte part of a hex
// prefix. Keyed stores seek to it and then filter with ID.HasPrefix, which
// also checks a trailing odd nibble.
func SeekPrefix(prefix string) []byte {
	n := len(prefix) / 2
	out := make([]byte, n)
	if _, err := hex.Decode(out, []byte(prefix[:n*2])); err != nil {
		return nil
	}
	return out
}

// IDFromBytes converts a raw key back into an ID.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, fmt.Errorf("%w: %d raw bytes, want %d", ErrMalformedID, len(b), IDSize)
	}
	copy(id[:], b)
	return id, nil
}
