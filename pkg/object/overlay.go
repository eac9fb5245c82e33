package object

import (
	"context"
	"errors"
	"fmt"
)

// FrontBackend is a backend that can serve as the ephemeral side of an
// Overlay: it must enumerate and drop its contents.
type FrontBackend interface {
	Backend
	Lister
	Clear() error
}

// Overlay layers an ephemeral front backend over a backing store. Reads fall
// through to back on a front miss; writes land only in front until Promote.
// Staged record blobs live here until a commit makes them reachable.
type Overlay struct {
	front FrontBackend
	back  Backend
}

// NewOverlay returns an Overlay writing to front and reading through to back.
func NewOverlay(front FrontBackend, back Backend) *Overlay {
	return &Overlay{front: front, back: back}
}

func (o *Overlay) Exists(id ID) (bool, error) {
	ok, err := o.front.Exists(id)
	if err != nil || ok {
		return ok, err
	}
	return o.back.Exists(id)
}

func (o *Overlay) Get(id ID) ([]byte, error) {
	raw, err := o.front.Get(id)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return o.back.Get(id)
}

// Put stores raw in front unless back already holds it.
func (o *Overlay) Put(id ID, raw []byte) error {
	ok, err := o.back.Exists(id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return o.front.Put(id, raw)
}

func (o *Overlay) Lookup(prefix string) ([]ID, error) {
	frontIDs, err := o.front.Lookup(prefix)
	if err != nil {
		return nil, err
	}
	backIDs, err := o.back.Lookup(prefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[ID]struct{}, len(frontIDs)+len(backIDs))
	out := make([]ID, 0, len(frontIDs)+len(backIDs))
	for _, ids := range [][]ID{frontIDs, backIDs} {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out, nil
}

// Delete removes id from front only; the backing store is never modified
// through an overlay except by Promote.
func (o *Overlay) Delete(id ID) error {
	return o.front.Delete(id)
}

// Pending returns the number of objects waiting in front.
func (o *Overlay) Pending() (int, error) {
	n := 0
	err := o.front.ForEach(func(ID, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Promote copies every front object into back and then clears front. It
// returns the number of objects copied. Cancellation leaves front intact;
// objects already copied are harmless since they are content-addressed.
func (o *Overlay) Promote(ctx context.Context) (int, error) {
	n := 0
	err := o.front.ForEach(func(id ID, raw []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.back.Put(id, raw); err != nil {
			return fmt.Errorf("promote %s: %w", id, err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	return n, o.front.Clear()
}

// Discard drops every pending front object.
func (o *Overlay) Discard() error {
	return o.front.Clear()
}

// Close closes the front backend. The backing store is owned by the caller.
func (o *Overlay) Close() error {
	return o.front.Close()
}
