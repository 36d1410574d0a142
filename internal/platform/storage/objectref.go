package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var errInvalidObject = errors.New("storage: object name is required")

const publicHost = "storage.googleapis.com"

// ParseObjectRef splits an image reference into bucket and object. Accepted forms:
// gs://bucket/path, https://storage.googleapis.com/bucket/path and a bare path inside
// defaultBucket.
func ParseObjectRef(ref, defaultBucket string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", errInvalidObject
	}

	switch {
	case strings.HasPrefix(ref, "gs://"):
		return splitBucketPath(strings.TrimPrefix(ref, "gs://"))
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", "", fmt.Errorf("storage: invalid object url %q: %w", ref, err)
		}
		if !strings.EqualFold(u.Host, publicHost) {
			return "", "", fmt.Errorf("storage: unsupported object host %q", u.Host)
		}
		path, err := url.PathUnescape(u.EscapedPath())
		if err != nil {
			return "", "", fmt.Errorf("storage: invalid object path %q: %w", ref, err)
		}
		return splitBucketPath(strings.TrimPrefix(path, "/"))
	}

	bucket := strings.TrimSpace(defaultBucket)
	if bucket == "" {
		return "", "", errors.New("storage: bucket name is required")
	}
	object, err := validateObject(strings.TrimPrefix(ref, "/"))
	if err != nil {
		return "", "", err
	}
	return bucket, object, nil
}

func splitBucketPath(value string) (string, string, error) {
	bucket, object, ok := strings.Cut(value, "/")
	if !ok || strings.TrimSpace(bucket) == "" {
		return "", "", fmt.Errorf("storage: reference %q has no bucket", value)
	}
	object, err := validateObject(object)
	if err != nil {
		return "", "", err
	}
	return bucket, object, nil
}

func validateObject(object string) (string, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return "", errInvalidObject
	}
	for _, segment := range strings.Split(object, "/") {
		if segment == ".." {
			return "", fmt.Errorf("storage: object %q must not contain '..'", object)
		}
	}
	return object, nil
}
