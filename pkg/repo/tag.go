package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

var (
	ErrTagExists   = errors.New("tag already exists")
	ErrTagNotFound = errors.New("tag not found")
)

// CreateTag creates or, with force, moves a lightweight tag ref under
// refs/tags/.
func (r *Repo) CreateTag(name string, target object.ID, force bool) error {
	ref, err := tagRef(name)
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if err := r.keep(target); err != nil {
		return fmt.Errorf("create tag: target %s: %w", target.Short(), err)
	}
	if err := r.putTag(ref, name, target, force); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// CreateAnnotatedTag stores a tag object pointing at target and points
// refs/tags/<name> at it. tagger and timestamp are resolved like a
// commit's when nil.
func (r *Repo) CreateAnnotatedTag(name string, target object.ID, tagger *object.Person, message string, timestamp *int64, force bool) (*object.Tag, error) {
	ref, err := tagRef(name)
	if err != nil {
		return nil, fmt.Errorf("create annotated tag: %w", err)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("create annotated tag: message is required")
	}
	targetObj, err := r.store.Get(target)
	if err != nil {
		return nil, fmt.Errorf("create annotated tag: read target %s: %w", target.Short(), err)
	}

	t := &object.Tag{
		Name:       name,
		Target:     target,
		TargetType: targetObj.ObjectType(),
		Message:    message,
	}
	if tagger != nil {
		t.Tagger = *tagger
	} else if t.Tagger, err = r.resolver.Author(); err != nil {
		return nil, fmt.Errorf("create annotated tag: %w", err)
	}
	if timestamp != nil {
		t.Timestamp = *timestamp
	} else {
		t.Timestamp = r.resolver.Now()
	}

	if err := r.keep(target); err != nil {
		return nil, fmt.Errorf("create annotated tag: %w", err)
	}
	if _, err := r.objects.Put(t); err != nil {
		return nil, fmt.Errorf("create annotated tag: write tag object: %w", err)
	}
	if err := r.putTag(ref, name, t.ID, force); err != nil {
		return nil, fmt.Errorf("create annotated tag: %w", err)
	}
	return t, nil
}

// keep copies a pending object into the committed store.
func (r *Repo) keep(id object.ID) error {
	ok, err := r.objects.Exists(id)
	if err != nil || ok {
		return err
	}
	typ, data, err := r.store.Read(id)
	if err != nil {
		return err
	}
	_, err = r.objects.Write(typ, data)
	return err
}

func (r *Repo) putTag(ref, name string, id object.ID, force bool) error {
	var expected []object.ID
	if !force {
		expected = []object.ID{object.NullID}
	}
	if _, err := refs.Update(r.refs, ref, id, "tag: "+name, expected...); err != nil {
		if errors.Is(err, refs.ErrPreconditionFailed) {
			return fmt.Errorf("%w: %q", ErrTagExists, name)
		}
		return err
	}
	return nil
}

// DeleteTag removes refs/tags/<name>. Tag objects are left in the store.
func (r *Repo) DeleteTag(name string) error {
	ref, err := tagRef(name)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	id, found, err := r.refs.GetRef(ref)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if !found {
		return fmt.Errorf("delete tag: %w: %q", ErrTagNotFound, name)
	}
	if _, err := r.refs.RemoveRef(ref, id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ListTags returns the tag refs sorted by name.
func (r *Repo) ListTags() ([]refs.Ref, error) {
	out, err := r.refs.List(refs.TagsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return out, nil
}

func tagRef(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: tag name is required", refs.ErrInvalidName)
	}
	ref := refs.TagName(name)
	if !strings.HasPrefix(ref, refs.TagsPrefix) {
		return "", fmt.Errorf("%w: %q is not a tag", refs.ErrInvalidName, name)
	}
	if err := refs.ValidateName(ref); err != nil {
		return "", err
	}
	return ref, nil
}
