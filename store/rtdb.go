package store

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/db"
)

// RTDB backs the Store with a Firebase Realtime Database client.
type RTDB struct {
	client *db.Client
}

func NewRTDB(client *db.Client) *RTDB {
	return &RTDB{client: client}
}

func (r *RTDB) Get(ctx context.Context, path string, v interface{}) error {
	if err := r.client.NewRef(Join(path)).Get(ctx, v); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func (r *RTDB) Set(ctx context.Context, path string, v interface{}) error {
	val, err := normalize(v)
	if err != nil {
		return err
	}
	ref := r.client.NewRef(Join(path))
	if val == nil {
		err = ref.Delete(ctx)
	} else {
		err = ref.Set(ctx, val)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (r *RTDB) Update(ctx context.Context, path string, values map[string]interface{}) error {
	vals := make(map[string]interface{}, len(values))
	for k, v := range values {
		val, err := normalize(v)
		if err != nil {
			return err
		}
		// a null leaf in a multi-location update deletes that child
		vals[Join(k)] = val
	}
	if err := r.client.NewRef(Join(path)).Update(ctx, vals); err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

func (r *RTDB) Delete(ctx context.Context, path string) error {
	if err := r.client.NewRef(Join(path)).Delete(ctx); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}
