package knowledge

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	familyConfidence   = 0.8
	businessConfidence = 0.75
	evidenceConfidence = 0.7
)

// ClusterBuilder groups entities into clusters using fixed structural
// rules over the entity and relationship sets. Given the same input it
// always produces the same cluster types and memberships.
type ClusterBuilder struct {
	logger *logrus.Logger
}

// NewClusterBuilder creates a cluster builder
func NewClusterBuilder() *ClusterBuilder {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &ClusterBuilder{logger: logger}
}

// Build applies every clustering rule and returns the clusters found.
// Entity ids inside each cluster are sorted, so membership can be
// compared across runs.
func (b *ClusterBuilder) Build(entities []Entity, relationships []Relationship) []EntityCluster {
	clusters := make([]EntityCluster, 0)

	clusters = append(clusters, b.familyClusters(entities, relationships)...)
	if c, ok := b.businessCluster(entities, relationships); ok {
		clusters = append(clusters, c)
	}
	if c, ok := b.evidenceChain(entities); ok {
		clusters = append(clusters, c)
	}

	for _, c := range clusters {
		clustersBuilt.WithLabelValues(string(c.Type)).Inc()
	}

	b.logger.WithFields(logrus.Fields{
		"entities_count": len(entities),
		"clusters_count": len(clusters),
	}).Info("Cluster building completed")

	return clusters
}

// familyClusters finds connected components among persons linked by
// knows or related_to edges. Components of one are not clusters.
func (b *ClusterBuilder) familyClusters(entities []Entity, relationships []Relationship) []EntityCluster {
	persons := mapset.NewSet[string]()
	for _, e := range entities {
		if e.Type == EntityPerson {
			persons.Add(e.ID)
		}
	}
	if persons.Cardinality() < 2 {
		return nil
	}

	adjacency := make(map[string][]string)
	for _, rel := range relationships {
		if rel.Type != RelationKnows && rel.Type != RelationRelatedTo {
			continue
		}
		if !persons.Contains(rel.SourceID) || !persons.Contains(rel.TargetID) {
			continue
		}
		adjacency[rel.SourceID] = append(adjacency[rel.SourceID], rel.TargetID)
		adjacency[rel.TargetID] = append(adjacency[rel.TargetID], rel.SourceID)
	}

	clusters := make([]EntityCluster, 0)
	visited := make(map[string]bool)
	for _, e := range entities {
		if e.Type != EntityPerson || visited[e.ID] {
			continue
		}
		component := bfsComponent(e.ID, adjacency, visited)
		if len(component) < 2 {
			continue
		}
		sort.Strings(component)
		clusters = append(clusters, EntityCluster{
			ID:          uuid.New().String(),
			Type:        ClusterFamily,
			EntityIDs:   component,
			Confidence:  familyConfidence,
			Description: fmt.Sprintf("Personal network of %d connected people", len(component)),
		})
	}
	return clusters
}

// bfsComponent walks the adjacency list breadth first and returns every
// node reachable from start, marking them visited
func bfsComponent(start string, adjacency map[string][]string, visited map[string]bool) []string {
	queue := []string{start}
	component := make([]string, 0)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true
		component = append(component, current)

		for _, next := range adjacency[current] {
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	return component
}

// businessCluster groups organizations with the people tied to them
// through employment or ownership. Without at least one such edge no
// cluster forms, however many organizations were extracted.
func (b *ClusterBuilder) businessCluster(entities []Entity, relationships []Relationship) (EntityCluster, bool) {
	orgs := mapset.NewSet[string]()
	for _, e := range entities {
		if e.Type == EntityOrganization {
			orgs.Add(e.ID)
		}
	}
	if orgs.Cardinality() == 0 {
		return EntityCluster{}, false
	}

	members := mapset.NewSet[string]()
	anchored := false
	for _, rel := range relationships {
		if rel.Type != RelationWorksFor && rel.Type != RelationOwns {
			continue
		}
		if !orgs.Contains(rel.SourceID) && !orgs.Contains(rel.TargetID) {
			continue
		}
		anchored = true
		members.Add(rel.SourceID)
		members.Add(rel.TargetID)
	}
	if !anchored {
		return EntityCluster{}, false
	}

	for _, id := range orgs.ToSlice() {
		members.Add(id)
	}
	if members.Cardinality() < 2 {
		return EntityCluster{}, false
	}

	ids := members.ToSlice()
	sort.Strings(ids)
	return EntityCluster{
		ID:          uuid.New().String(),
		Type:        ClusterBusiness,
		EntityIDs:   ids,
		Confidence:  businessConfidence,
		Description: fmt.Sprintf("Business network of %d organizations and associates", orgs.Cardinality()),
	}, true
}

// evidenceChain collects every document, date and amount into a single
// evidentiary cluster when there is more than one of them
func (b *ClusterBuilder) evidenceChain(entities []Entity) (EntityCluster, bool) {
	ids := make([]string, 0)
	for _, e := range entities {
		switch e.Type {
		case EntityDocument, EntityDate, EntityAmount:
			ids = append(ids, e.ID)
		}
	}
	if len(ids) < 2 {
		return EntityCluster{}, false
	}

	sort.Strings(ids)
	return EntityCluster{
		ID:          uuid.New().String(),
		Type:        ClusterEvidenceChain,
		EntityIDs:   ids,
		Confidence:  evidenceConfidence,
		Description: fmt.Sprintf("Evidence trail of %d documents, dates and amounts", len(ids)),
	}, true
}
