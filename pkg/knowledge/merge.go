package knowledge

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// mentionBoost is added to importance for every mention beyond the first
const mentionBoost = 0.05

// MergeEntities deduplicates entities by (name, type). The first mention
// of each pair survives with its id, source refs from later mentions are
// appended, confidence takes the maximum seen, and importance grows a
// little with every extra mention, capped at 1.0. Input order is kept.
func MergeEntities(entities []Entity) []Entity {
	type key struct {
		name string
		t    EntityType
	}

	merged := make([]Entity, 0, len(entities))
	index := make(map[key]int)

	for _, entity := range entities {
		k := key{name: entity.Name, t: entity.Type}
		at, seen := index[k]
		if !seen {
			index[k] = len(merged)
			merged = append(merged, entity)
			continue
		}

		kept := &merged[at]
		kept.Metadata.Sources = append(kept.Metadata.Sources, entity.Metadata.Sources...)
		if entity.Metadata.Confidence > kept.Metadata.Confidence {
			kept.Metadata.Confidence = entity.Metadata.Confidence
		}
		kept.Metadata.Importance = clampScore(kept.Metadata.Importance + mentionBoost)
		kept.Metadata.Verified = kept.Metadata.Verified || entity.Metadata.Verified
		kept.Aliases = mergeAliases(kept.Aliases, entity.Aliases)
	}

	return merged
}

func mergeAliases(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	set := mapset.NewSet(a...)
	for _, alias := range b {
		set.Add(alias)
	}
	out := set.ToSlice()
	sort.Strings(out)
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
