package cache

import "errors"

var (
	ErrInvalidEntry  = errors.New("cache entry has no rates")
	ErrJsonMarshal   = errors.New("failed to marshal cache entry to json")
	ErrJsonUnmarshal = errors.New("failed to unmarshal cache entry from json")
)
