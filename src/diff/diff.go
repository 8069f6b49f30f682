package diff

import (
	"cmp"
	"slices"
)

// Entry pairs a key with its model value inside one result bucket.
type Entry[K cmp.Ordered, M any] struct {
	Key   K
	Model M
}

// Result classifies two keyed collections relative to each other. Entries
// present in both maps with equal values are dropped silently.
type Result[K cmp.Ordered, M any] struct {
	Added   []Entry[K, M]
	Updated []Entry[K, M]
	Removed []Entry[K, M]
}

// Empty reports whether the diff implies no mutation at all.
func (r Result[K, M]) Empty() bool {
	return len(r.Added) == 0 && len(r.Updated) == 0 && len(r.Removed) == 0
}

// Diff compares existing against incoming by key. Equality of models present
// on both sides is delegated to equal; callers must normalize values (e.g.
// sort array-valued fields) before calling so ordering differences do not
// surface as spurious updates. Each bucket is sorted by key so output and
// logging stay deterministic. Runs in O(n+m).
func Diff[K cmp.Ordered, M any](existing, incoming map[K]M, equal func(a, b M) bool) Result[K, M] {
	var result Result[K, M]

	for key, incomingModel := range incoming {
		existingModel, ok := existing[key]
		if !ok {
			result.Added = append(result.Added, Entry[K, M]{Key: key, Model: incomingModel})
			continue
		}
		if !equal(existingModel, incomingModel) {
			result.Updated = append(result.Updated, Entry[K, M]{Key: key, Model: incomingModel})
		}
	}

	for key, existingModel := range existing {
		if _, ok := incoming[key]; !ok {
			result.Removed = append(result.Removed, Entry[K, M]{Key: key, Model: existingModel})
		}
	}

	sortBucket(result.Added)
	sortBucket(result.Updated)
	sortBucket(result.Removed)

	return result
}

func sortBucket[K cmp.Ordered, M any](bucket []Entry[K, M]) {
	slices.SortFunc(bucket, func(a, b Entry[K, M]) int {
		return cmp.Compare(a.Key, b.Key)
	})
}
