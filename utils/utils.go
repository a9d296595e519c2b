package utils

import (
	"sort"

	"go.uber.org/zap"
)

func Fatal(err error, errMsg string) {
	if err != nil {
		zap.S().Fatalw(errMsg, "error", err)
	}
}

func NonFatal(err error, errMsg string) {
	if err != nil {
		zap.S().Warnw(errMsg, "error", err)
	}
}

func Map[T any, E any](l []T, f func(e T) E) []E {
	r := make([]E, len(l))
	for i, x := range l {
		r[i] = f(x)
	}
	return r
}

func Filter[T any](l []T, t func(e T) bool) []T {
	f := make([]T, 0, len(l))
	for _, x := range l {
		if t(x) {
			f = append(f, x)
		}
	}
	return f
}

func Any[T any](l []T, f func(T) bool) bool {
	for _, x := range l {
		if f(x) {
			return true
		}
	}
	return false
}

func Contains[T comparable](e T, a []T) bool {
	for _, x := range a {
		if x == e {
			return true
		}
	}
	return false
}

// SortedKeys returns the keys of m in ascending order, matching the order
// the realtime database lists children in.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
