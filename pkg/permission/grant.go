package permission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPermissionGrant is returned for grants that are neither a bool nor a key list
var ErrInvalidPermissionGrant = errors.New("invalid permission grant")

// BucketGrant is the value granted to one bucket: on, off, or a list of resource keys
type BucketGrant struct {
	Allowed bool
	Keys    []string
}

// Allow grants a whole bucket
func Allow() BucketGrant { return BucketGrant{Allowed: true} }

// Deny grants nothing
func Deny() BucketGrant { return BucketGrant{} }

// Keys grants tools for the listed resource keys only
func Keys(keys ...string) BucketGrant { return BucketGrant{Keys: append([]string{}, keys...)} }

// IsList reports whether the grant names resource keys
func (g BucketGrant) IsList() bool { return g.Keys != nil }

// UnmarshalJSON accepts true, false, null or an array of strings
func (g *BucketGrant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*g = BucketGrant{}

	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		g.Allowed = b
		return nil
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err == nil {
		*g = Keys(keys...)
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidPermissionGrant, string(data))
}

// MarshalJSON writes the grant back as a bool or a key list
func (g BucketGrant) MarshalJSON() ([]byte, error) {
	if g.IsList() {
		return json.Marshal(g.Keys)
	}
	return json.Marshal(g.Allowed)
}

// CategoryGrant maps bucket names to grants
type CategoryGrant map[string]BucketGrant

// Grant maps category names to their bucket grants
type Grant map[string]CategoryGrant

// ParseGrant converts a decoded JSON or config value into a Grant
func ParseGrant(raw map[string]interface{}) (Grant, error) {
	grant := make(Grant, len(raw))

	for category, v := range raw {
		buckets, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: category %s must be an object, got %T", ErrInvalidPermissionGrant, category, v)
		}

		cg := make(CategoryGrant, len(buckets))
		for bucket, bv := range buckets {
			bg, err := parseBucketGrant(bv)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", category, bucket, err)
			}
			cg[bucket] = bg
		}
		grant[category] = cg
	}

	return grant, nil
}

func parseBucketGrant(v interface{}) (BucketGrant, error) {
	switch val := v.(type) {
	case nil:
		return Deny(), nil
	case bool:
		return BucketGrant{Allowed: val}, nil
	case []string:
		return Keys(val...), nil
	case []interface{}:
		keys := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return BucketGrant{}, fmt.Errorf("%w: list entries must be strings, got %T", ErrInvalidPermissionGrant, item)
			}
			keys = append(keys, s)
		}
		return Keys(keys...), nil
	default:
		return BucketGrant{}, fmt.Errorf("%w: got %T", ErrInvalidPermissionGrant, v)
	}
}
