package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// ObjectRemover deletes Cloud Storage objects referenced by catalog records.
type ObjectRemover struct {
	defaultBucket string
	remove        func(ctx context.Context, bucket, object string) error
}

// NewObjectRemover constructs a remover backed by client. References without a bucket resolve
// against defaultBucket.
func NewObjectRemover(client *gcs.Client, defaultBucket string) (*ObjectRemover, error) {
	if client == nil {
		return nil, errors.New("storage remover: client is required")
	}
	return &ObjectRemover{
		defaultBucket: strings.TrimSpace(defaultBucket),
		remove: func(ctx context.Context, bucket, object string) error {
			return client.Bucket(bucket).Object(object).Delete(ctx)
		},
	}, nil
}

// RemoveObjects deletes every referenced object. Already missing objects count as removed; the
// remaining failures are joined into the returned error.
func (r *ObjectRemover) RemoveObjects(ctx context.Context, refs []string) error {
	if r == nil || r.remove == nil {
		return errors.New("storage remover: not initialised")
	}
	var errs []error
	for _, ref := range refs {
		bucket, object, err := ParseObjectRef(ref, r.defaultBucket)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.remove(ctx, bucket, object); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			errs = append(errs, fmt.Errorf("storage: delete gs://%s/%s: %w", bucket, object, err))
		}
	}
	return errors.Join(errs...)
}
