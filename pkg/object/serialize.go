package object

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses CBOR Core Deterministic Encoding: same logical object, same
// bytes. Object IDs depend on it.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("object: CBOR encoder initialization failed: " + err.Error())
	}
	return em
}()

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("object: CBOR decoder initialization failed: " + err.Error())
	}
	return dm
}()

// MarshalCanonical encodes v with the deterministic CBOR mode used for every
// stored object. Other packages use it for record payloads and index files.
func MarshalCanonical(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalCanonical decodes CBOR produced by MarshalCanonical.
func UnmarshalCanonical(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// encodeEnvelope builds the stored form "type len\0content".
func encodeEnvelope(objType Type, data []byte) []byte {
	header := envelopeHeader(objType, len(data))
	raw := make([]byte, 0, len(header)+len(data))
	raw = append(raw, header...)
	return append(raw, data...)
}

// decodeEnvelope splits a stored envelope into its type and content.
func decodeEnvelope(raw []byte) (Type, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return 0, nil, fmt.Errorf("%w: invalid envelope (no NUL)", ErrDecode)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typeName, lenText, ok := strings.Cut(header, " ")
	if !ok {
		return 0, nil, fmt.Errorf("%w: invalid envelope header %q", ErrDecode, header)
	}
	objType, err := ParseType(typeName)
	if err != nil {
		return 0, nil, err
	}
	length, err := strconv.Atoi(lenText)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: invalid envelope length %q", ErrDecode, lenText)
	}
	if len(content) != length {
		return 0, nil, fmt.Errorf("%w: length mismatch (header=%d, actual=%d)", ErrDecode, length, len(content))
	}
	return objType, content, nil
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Path and buckets by
// Index so the encoding only depends on content.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	out := TreeObj{Version: tr.Version}
	if out.Version == 0 {
		out.Version = TreeFormatVersion
	}
	if len(tr.Entries) > 0 {
		out.Entries = slices.Clone(tr.Entries)
		slices.SortFunc(out.Entries, func(a, b NodeRef) int {
			return strings.Compare(a.Path, b.Path)
		})
	}
	if len(tr.Buckets) > 0 {
		out.Buckets = slices.Clone(tr.Buckets)
		slices.SortFunc(out.Buckets, func(a, b Bucket) int {
			return cmp.Compare(a.Index, b.Index)
		})
	}
	data, err := encMode.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}
	return data, nil
}

// UnmarshalTree parses a TreeObj. Unknown format versions are rejected.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	var tr TreeObj
	if err := decMode.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w: %v", ErrDecode, err)
	}
	if tr.Version != TreeFormatVersion {
		return nil, fmt.Errorf("unmarshal tree: %w: unsupported format version %d", ErrDecode, tr.Version)
	}
	if len(tr.Entries) > 0 && len(tr.Buckets) > 0 {
		return nil, fmt.Errorf("unmarshal tree: %w: node holds both entries and buckets", ErrDecode)
	}
	return &tr, nil
}

// emptyTreeID is the ID of the tree with no entries.
var emptyTreeID = func() ID {
	data, err := MarshalTree(&TreeObj{})
	if err != nil {
		panic("object: empty tree encoding failed: " + err.Error())
	}
	return HashObject(TypeTree, data)
}()

// EmptyTreeID returns the ID of the empty tree.
func EmptyTreeID() ID {
	return emptyTreeID
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit.
func MarshalCommit(c *Commit) ([]byte, error) {
	data, err := encMode.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal commit: %w", err)
	}
	return data, nil
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := decMode.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w: %v", ErrDecode, err)
	}
	return &c, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes a Tag.
func MarshalTag(t *Tag) ([]byte, error) {
	data, err := encMode.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal tag: %w", err)
	}
	return data, nil
}

// UnmarshalTag parses a Tag from its serialized form.
func UnmarshalTag(data []byte) (*Tag, error) {
	var t Tag
	if err := decMode.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal tag: %w: %v", ErrDecode, err)
	}
	return &t, nil
}
