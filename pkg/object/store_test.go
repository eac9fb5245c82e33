package object

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %s != %s", h1, h2)
	}
	if len(h1.String()) != 64 {
		t.Errorf("hex length: got %d, want 64", len(h1.String()))
	}
}

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	h1 := HashObject(TypeBlob, data)
	if h1 == HashBytes(data) {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}
	if h1 != HashObject(TypeBlob, data) {
		t.Error("HashObject not deterministic")
	}
	if h1 == HashObject(TypeTree, data) {
		t.Error("Different types should produce different hashes")
	}
}

func TestParseID(t *testing.T) {
	id := ForString("x")
	got, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if got != id {
		t.Errorf("ParseID round trip: got %s, want %s", got, id)
	}
	for _, bad := range []string{"", "abc", strings.Repeat("z", 64), strings.Repeat("a", 63)} {
		if _, err := ParseID(bad); !errors.Is(err, ErrMalformedID) {
			t.Errorf("ParseID(%q): expected ErrMalformedID, got %v", bad, err)
		}
	}
}

// backends returns one instance of every Backend implementation in this
// package so the contract tests run against each.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	return map[string]Backend{
		"memory":    NewMemoryBackend(),
		"file-none": NewFileBackend(filepath.Join(t.TempDir(), "objects"), CompressionNone),
		"file-zstd": NewFileBackend(filepath.Join(t.TempDir(), "objects"), CompressionZstd),
		"file-lz4":  NewFileBackend(filepath.Join(t.TempDir(), "objects"), CompressionLZ4),
		"overlay":   NewOverlay(NewMemoryBackend(), NewMemoryBackend()),
	}
}

func TestStoreRoundTripAllTypes(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, nil)

			blob := &Blob{Data: []byte(strings.Repeat("record payload ", 50))}
			tree := &TreeObj{Entries: []NodeRef{{Path: "a", ObjectID: ForString("a"), Type: TypeBlob}}}
			commit := &Commit{TreeID: ForString("t"), Author: Person{Name: "a"}, Message: "m", Timestamp: 42}
			tag := &Tag{Name: "v1", Target: ForString("c"), TargetType: TypeCommit, Message: "t"}

			for _, obj := range []RevObject{blob, tree, commit, tag} {
				id, err := s.Put(obj)
				if err != nil {
					t.Fatalf("Put %T: %v", obj, err)
				}
				if obj.ObjectID() != id {
					t.Errorf("Put %T did not set the ID", obj)
				}
				got, err := s.Get(id)
				if err != nil {
					t.Fatalf("Get %T: %v", obj, err)
				}
				if got.ObjectType() != obj.ObjectType() {
					t.Errorf("type: got %s, want %s", got.ObjectType(), obj.ObjectType())
				}
				if got.ObjectID() != id {
					t.Errorf("Get did not set the ID")
				}
			}

			gotTree, err := s.ReadTree(tree.ID)
			if err != nil {
				t.Fatalf("ReadTree: %v", err)
			}
			if gotTree.Version != TreeFormatVersion || !gotTree.Entries[0].Equal(tree.Entries[0]) {
				t.Errorf("tree mismatch: %+v", gotTree)
			}
			gotCommit, err := s.ReadCommit(commit.ID)
			if err != nil {
				t.Fatalf("ReadCommit: %v", err)
			}
			if !reflect.DeepEqual(gotCommit, commit) {
				t.Errorf("commit mismatch:\n got %+v\nwant %+v", gotCommit, commit)
			}
			gotBlob, err := s.ReadBlob(blob.ID)
			if err != nil {
				t.Fatalf("ReadBlob: %v", err)
			}
			if string(gotBlob.Data) != string(blob.Data) {
				t.Error("blob mismatch")
			}
		})
	}
}

func TestStorePutIdempotent(t *testing.T) {
	b := NewMemoryBackend()
	s := NewStore(b, nil)
	id1, err := s.WriteBlob(&Blob{Data: []byte("same")})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.WriteBlob(&Blob{Data: []byte("same")})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("IDs differ: %s vs %s", id1, id2)
	}
	if b.Len() != 1 {
		t.Errorf("stored %d objects, want 1", b.Len())
	}
}

func TestStoreNotFoundAndTypeMismatch(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, nil)
			missing := ForString("missing")
			if ok, err := s.Exists(missing); err != nil || ok {
				t.Errorf("Exists(missing) = %v, %v", ok, err)
			}
			if _, err := s.Get(missing); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			id, err := s.WriteBlob(&Blob{Data: []byte("x")})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := s.ReadCommit(id); !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode for type mismatch, got %v", err)
			}
		})
	}
}

func TestStoreEmptyTreeAlwaysReadable(t *testing.T) {
	s := NewStore(NewMemoryBackend(), nil)
	tr, err := s.ReadTree(s.EmptyTreeID())
	if err != nil {
		t.Fatalf("ReadTree(empty): %v", err)
	}
	if tr.Size() != 0 || tr.ID != s.EmptyTreeID() {
		t.Errorf("unexpected empty tree %+v", tr)
	}
	ok, err := s.Exists(s.EmptyTreeID())
	if err != nil || !ok {
		t.Errorf("Exists(empty) = %v, %v", ok, err)
	}
}

func TestStoreLookupAndResolvePrefix(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, nil)
			var ids []ID
			for i := 0; i < 40; i++ {
				id, err := s.WriteBlob(&Blob{Data: []byte(fmt.Sprintf("obj-%d", i))})
				if err != nil {
					t.Fatal(err)
				}
				ids = append(ids, id)
			}

			all, err := s.Lookup("")
			if err != nil {
				t.Fatalf("Lookup all: %v", err)
			}
			if len(all) != len(ids) {
				t.Errorf("Lookup all: got %d, want %d", len(all), len(ids))
			}

			target := ids[7]
			got, err := s.ResolvePrefix(target.String()[:12])
			if err != nil {
				t.Fatalf("ResolvePrefix: %v", err)
			}
			if got != target {
				t.Errorf("ResolvePrefix: got %s, want %s", got, target)
			}
			got, err = s.ResolvePrefix(strings.ToUpper(target.String()))
			if err != nil || got != target {
				t.Errorf("ResolvePrefix(full upper) = %s, %v", got, err)
			}

			matches, err := s.Lookup(target.String()[:1])
			if err != nil {
				t.Fatal(err)
			}
			found := false
			for _, m := range matches {
				if !strings.HasPrefix(m.String(), target.String()[:1]) {
					t.Errorf("Lookup returned non-matching %s", m)
				}
				found = found || m == target
			}
			if !found {
				t.Error("Lookup(1 char) missed target")
			}

			if _, err := s.ResolvePrefix("ab"); !errors.Is(err, ErrMalformedID) {
				t.Errorf("short prefix: expected ErrMalformedID, got %v", err)
			}
			if _, err := s.Lookup("xyz"); !errors.Is(err, ErrMalformedID) {
				t.Errorf("non-hex prefix: expected ErrMalformedID, got %v", err)
			}
		})
	}
}

func TestResolvePrefixAmbiguous(t *testing.T) {
	b := NewMemoryBackend()
	s := NewStore(b, nil)
	// Two IDs sharing a long prefix are forced through the backend directly.
	var a, c ID
	a[0], a[1], a[2] = 0xab, 0xcd, 0x01
	c[0], c[1], c[2] = 0xab, 0xcd, 0x02
	b.Put(a, encodeEnvelope(TypeBlob, nil))
	b.Put(c, encodeEnvelope(TypeBlob, nil))

	if _, err := s.ResolvePrefix("abcd"); !errors.Is(err, ErrAmbiguousID) {
		t.Errorf("expected ErrAmbiguousID, got %v", err)
	}
	if _, err := s.ResolvePrefix("abcd01"); err != nil {
		t.Errorf("unique prefix: %v", err)
	}
	if _, err := s.ResolvePrefix("ffff"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileBackendLayoutAndAtomicWrite(t *testing.T) {
	root := filepath.Join(t.TempDir(), "objects")
	s := NewStore(NewFileBackend(root, CompressionZstd), nil)
	id, err := s.WriteBlob(&Blob{Data: []byte("fan-out")})
	if err != nil {
		t.Fatal(err)
	}
	hex := id.String()
	if _, err := os.Stat(filepath.Join(root, hex[:2], hex[2:])); err != nil {
		t.Fatalf("object not at fan-out path: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, hex[:2]))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileBackendCorruptValue(t *testing.T) {
	root := filepath.Join(t.TempDir(), "objects")
	b := NewFileBackend(root, CompressionNone)
	s := NewStore(b, nil)
	id, err := s.WriteBlob(&Blob{Data: []byte("soon corrupt")})
	if err != nil {
		t.Fatal(err)
	}
	hex := id.String()
	if err := os.WriteFile(filepath.Join(root, hex[:2], hex[2:]), []byte{9, 1, 2}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadBlob(id); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}

	oversized := map[string][]byte{
		"overflowing length": append([]byte{byte(CompressionLZ4), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 0),
		"1 TiB length":       append([]byte{byte(CompressionLZ4)}, append(binary.AppendUvarint(nil, 1<<40), 0)...),
	}
	for name, stored := range oversized {
		if err := os.WriteFile(filepath.Join(root, hex[:2], hex[2:]), stored, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := s.ReadBlob(id); !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("x"),
		[]byte(strings.Repeat("compressible ", 200)),
	}
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		for _, in := range inputs {
			stored, err := Compress(c, in)
			if err != nil {
				t.Fatalf("%s: Compress: %v", c, err)
			}
			out, err := Decompress(stored)
			if err != nil {
				t.Fatalf("%s: Decompress: %v", c, err)
			}
			if string(out) != string(in) {
				t.Errorf("%s: round trip mismatch for %d bytes", c, len(in))
			}
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("expected error for unknown compression")
	}
}

func TestOverlayReadsFallThroughAndPromote(t *testing.T) {
	back := NewMemoryBackend()
	front := NewMemoryBackend()
	overlay := NewOverlay(front, back)

	backStore := NewStore(back, nil)
	staged := NewStore(overlay, nil)

	committed, err := backStore.WriteBlob(&Blob{Data: []byte("committed")})
	if err != nil {
		t.Fatal(err)
	}
	pending, err := staged.WriteBlob(&Blob{Data: []byte("pending")})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := staged.ReadBlob(committed); err != nil {
		t.Errorf("overlay should read through to back: %v", err)
	}
	if ok, _ := backStore.Exists(pending); ok {
		t.Error("overlay write leaked into back before Promote")
	}
	// Re-putting an object the back already holds does not copy it forward.
	if _, err := staged.WriteBlob(&Blob{Data: []byte("committed")}); err != nil {
		t.Fatal(err)
	}
	if front.Len() != 1 {
		t.Errorf("front holds %d objects, want 1", front.Len())
	}

	n, err := overlay.Promote(context.Background())
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if n != 1 {
		t.Errorf("promoted %d, want 1", n)
	}
	if ok, _ := backStore.Exists(pending); !ok {
		t.Error("Promote did not copy the pending object")
	}
	if front.Len() != 0 {
		t.Error("Promote did not clear front")
	}
}

func TestOverlayPromoteCanceled(t *testing.T) {
	back := NewMemoryBackend()
	front := NewMemoryBackend()
	overlay := NewOverlay(front, back)
	if _, err := NewStore(overlay, nil).WriteBlob(&Blob{Data: []byte("p")}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := overlay.Promote(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if front.Len() != 1 || back.Len() != 0 {
		t.Errorf("canceled promote changed state: front=%d back=%d", front.Len(), back.Len())
	}
	if err := overlay.Discard(); err != nil {
		t.Fatal(err)
	}
	if front.Len() != 0 {
		t.Error("Discard did not clear front")
	}
}
