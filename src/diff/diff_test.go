package diff

import (
	"reflect"
	"testing"
)

type agencyModel struct {
	Email       string
	PostalCodes []string
}

func agenciesEqual(a, b agencyModel) bool {
	return a.Email == b.Email && reflect.DeepEqual(a.PostalCodes, b.PostalCodes)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	t.Run("disjoint keys classify as removed and added only", func(t *testing.T) {
		existing := map[string]int{"a": 1, "b": 2}
		incoming := map[string]int{"c": 3, "d": 4}

		result := Diff(existing, incoming, func(a, b int) bool { return a == b })

		if got := len(result.Removed); got != 2 {
			t.Fatalf("expected 2 removed, got %d", got)
		}
		if got := len(result.Added); got != 2 {
			t.Fatalf("expected 2 added, got %d", got)
		}
		if got := len(result.Updated); got != 0 {
			t.Fatalf("expected 0 updated, got %d", got)
		}
	})

	t.Run("equal maps yield empty result", func(t *testing.T) {
		existing := map[string]agencyModel{
			"paris@example.com": {Email: "paris@example.com", PostalCodes: []string{"75", "92"}},
		}
		incoming := map[string]agencyModel{
			"paris@example.com": {Email: "paris@example.com", PostalCodes: []string{"75", "92"}},
		}

		result := Diff(existing, incoming, agenciesEqual)

		if !result.Empty() {
			t.Fatalf("expected empty result, got %+v", result)
		}
	})

	t.Run("changed value classifies as updated with incoming model", func(t *testing.T) {
		existing := map[string]agencyModel{
			"lyon@example.com": {Email: "lyon@example.com", PostalCodes: []string{"69"}},
		}
		incoming := map[string]agencyModel{
			"lyon@example.com": {Email: "lyon@example.com", PostalCodes: []string{"01", "69"}},
		}

		result := Diff(existing, incoming, agenciesEqual)

		if len(result.Updated) != 1 {
			t.Fatalf("expected 1 updated, got %d", len(result.Updated))
		}
		if got := result.Updated[0].Model.PostalCodes; !reflect.DeepEqual(got, []string{"01", "69"}) {
			t.Fatalf("expected incoming model in updated bucket, got %v", got)
		}
		if len(result.Added) != 0 || len(result.Removed) != 0 {
			t.Fatalf("expected only updates, got %+v", result)
		}
	})

	t.Run("buckets are sorted by key", func(t *testing.T) {
		existing := map[string]int{}
		incoming := map[string]int{"z": 1, "a": 2, "m": 3}

		result := Diff(existing, incoming, func(a, b int) bool { return a == b })

		keys := make([]string, 0, len(result.Added))
		for _, entry := range result.Added {
			keys = append(keys, entry.Key)
		}
		if !reflect.DeepEqual(keys, []string{"a", "m", "z"}) {
			t.Fatalf("expected sorted keys, got %v", keys)
		}
	})

	t.Run("both maps empty", func(t *testing.T) {
		result := Diff(map[int]string{}, map[int]string{}, func(a, b string) bool { return a == b })
		if !result.Empty() {
			t.Fatalf("expected empty result, got %+v", result)
		}
	})
}
