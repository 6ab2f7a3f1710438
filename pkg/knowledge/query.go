package knowledge

import "strings"

// EntitiesByType returns the network's entities of the given type, in
// network order
func EntitiesByType(n *EntityNetwork, t EntityType) []Entity {
	out := make([]Entity, 0)
	for _, e := range n.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// FindEntity looks up an entity by name and type, case-insensitively
func FindEntity(n *EntityNetwork, name string, t EntityType) (Entity, bool) {
	for _, e := range n.Entities {
		if e.Type == t && strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entity{}, false
}

// RelationshipsFor returns every edge touching the entity, whichever
// end it sits on
func RelationshipsFor(n *EntityNetwork, entityID string) []Relationship {
	out := make([]Relationship, 0)
	for _, rel := range n.Relationships {
		if rel.SourceID == entityID || rel.TargetID == entityID {
			out = append(out, rel)
		}
	}
	return out
}

// Neighbors returns the ids of entities one hop away from the entity.
// Directed edges count in both directions for neighborhood purposes.
func Neighbors(n *EntityNetwork, entityID string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, rel := range n.Relationships {
		var other string
		switch entityID {
		case rel.SourceID:
			other = rel.TargetID
		case rel.TargetID:
			other = rel.SourceID
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out
}

// ClustersContaining returns every cluster the entity belongs to
func ClustersContaining(n *EntityNetwork, entityID string) []EntityCluster {
	out := make([]EntityCluster, 0)
	for _, c := range n.Clusters {
		for _, id := range c.EntityIDs {
			if id == entityID {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// NetworkStats summarises a network for reporting
type NetworkStats struct {
	Entities            int                      `json:"entities"`
	Relationships       int                      `json:"relationships"`
	Clusters            int                      `json:"clusters"`
	EntitiesByType      map[EntityType]int       `json:"entities_by_type"`
	RelationshipsByType map[RelationshipType]int `json:"relationships_by_type"`
	AverageStrength     float64                  `json:"average_strength"`
}

// Stats computes summary counts and the mean edge strength
func Stats(n *EntityNetwork) NetworkStats {
	stats := NetworkStats{
		Entities:            len(n.Entities),
		Relationships:       len(n.Relationships),
		Clusters:            len(n.Clusters),
		EntitiesByType:      make(map[EntityType]int),
		RelationshipsByType: make(map[RelationshipType]int),
	}

	for _, e := range n.Entities {
		stats.EntitiesByType[e.Type]++
	}

	total := 0.0
	for _, rel := range n.Relationships {
		stats.RelationshipsByType[rel.Type]++
		total += rel.Strength
	}
	if len(n.Relationships) > 0 {
		stats.AverageStrength = total / float64(len(n.Relationships))
	}

	return stats
}
