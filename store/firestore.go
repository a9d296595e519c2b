package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore maps tree paths onto documents: the first segment names a
// collection, the second a document and the rest a field path inside it.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Get(ctx context.Context, path string, v interface{}) error {
	segs := split(path)
	switch len(segs) {
	case 0:
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	case 1:
		return f.getCollection(ctx, segs[0], v)
	}

	snap, err := f.client.Collection(segs[0]).Doc(segs[1]).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(segs) == 2 {
		return convert(snap.Data(), v)
	}

	val, err := snap.DataAtPath(firestore.FieldPath(segs[2:]))
	if err != nil {
		// missing field
		return nil
	}
	return convert(val, v)
}

func (f *Firestore) getCollection(ctx context.Context, name string, v interface{}) error {
	docs := make(map[string]interface{})
	it := f.client.Collection(name).Documents(ctx)
	defer it.Stop()
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("reading collection %s: %w", name, err)
		}
		docs[doc.Ref.ID] = doc.Data()
	}
	return convert(docs, v)
}

func (f *Firestore) Set(ctx context.Context, path string, v interface{}) error {
	segs := split(path)
	if len(segs) < 2 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	val, err := normalize(v)
	if err != nil {
		return err
	}
	if val == nil {
		return f.Delete(ctx, path)
	}

	doc := f.client.Collection(segs[0]).Doc(segs[1])
	if len(segs) == 2 {
		data, ok := val.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: document %q needs an object", ErrInvalidPath, path)
		}
		_, err = doc.Set(ctx, data)
	} else {
		fields := segs[2:]
		data := make(map[string]interface{})
		nest(data, fields, val)
		_, err = doc.Set(ctx, data, firestore.Merge(firestore.FieldPath(fields)))
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, path string, values map[string]interface{}) error {
	segs := split(path)
	if len(segs) < 2 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	data := make(map[string]interface{})
	paths := make([]firestore.FieldPath, 0, len(values))
	for k, v := range values {
		fields := append(append([]string{}, segs[2:]...), split(k)...)
		if len(fields) == 0 {
			return fmt.Errorf("%w: empty field under %q", ErrInvalidPath, path)
		}
		val, err := normalize(v)
		if err != nil {
			return err
		}
		if val == nil {
			val = firestore.Delete
		}
		nest(data, fields, val)
		paths = append(paths, firestore.FieldPath(fields))
	}

	doc := f.client.Collection(segs[0]).Doc(segs[1])
	if _, err := doc.Set(ctx, data, firestore.Merge(paths...)); err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, path string) error {
	segs := split(path)
	if len(segs) < 2 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	doc := f.client.Collection(segs[0]).Doc(segs[1])
	var err error
	if len(segs) == 2 {
		_, err = doc.Delete(ctx)
	} else {
		_, err = doc.Update(ctx, []firestore.Update{{
			FieldPath: firestore.FieldPath(segs[2:]),
			Value:     firestore.Delete,
		}})
	}
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

func nest(m map[string]interface{}, fields []string, val interface{}) {
	for _, f := range fields[:len(fields)-1] {
		child, ok := m[f].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			m[f] = child
		}
		m = child
	}
	m[fields[len(fields)-1]] = val
}
