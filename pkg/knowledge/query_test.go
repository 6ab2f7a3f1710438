package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryFixture() *EntityNetwork {
	p1 := person("p1")
	p1.Name = "John Smith"
	p2 := person("p2")
	p2.Name = "Jane Doe"
	o1 := organization("o1")
	o1.Name = "Acme Holdings Ltd"

	r1 := edge("p1", "p2", RelationKnows)
	r1.Strength = 0.6
	r2 := edge("p1", "o1", RelationWorksFor)
	r2.Strength = 0.8

	return &EntityNetwork{
		CaseID:        "case-1",
		Entities:      []Entity{p1, p2, o1},
		Relationships: []Relationship{r1, r2},
		Clusters: []EntityCluster{
			{ID: "c1", Type: ClusterFamily, EntityIDs: []string{"p1", "p2"}},
		},
	}
}

func TestEntitiesByType(t *testing.T) {
	n := queryFixture()

	persons := EntitiesByType(n, EntityPerson)
	require.Len(t, persons, 2)
	assert.Equal(t, "John Smith", persons[0].Name)
	assert.Equal(t, "Jane Doe", persons[1].Name)

	assert.Empty(t, EntitiesByType(n, EntityAmount))
}

func TestFindEntity(t *testing.T) {
	n := queryFixture()

	t.Run("case insensitive lookup", func(t *testing.T) {
		e, ok := FindEntity(n, "john smith", EntityPerson)
		require.True(t, ok)
		assert.Equal(t, "p1", e.ID)
	})

	t.Run("type must match", func(t *testing.T) {
		_, ok := FindEntity(n, "John Smith", EntityOrganization)
		assert.False(t, ok)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, ok := FindEntity(n, "Nobody", EntityPerson)
		assert.False(t, ok)
	})
}

func TestRelationshipsFor(t *testing.T) {
	n := queryFixture()

	rels := RelationshipsFor(n, "p1")
	assert.Len(t, rels, 2)

	rels = RelationshipsFor(n, "o1")
	require.Len(t, rels, 1)
	assert.Equal(t, RelationWorksFor, rels[0].Type)

	assert.Empty(t, RelationshipsFor(n, "ghost"))
}

func TestNeighbors(t *testing.T) {
	n := queryFixture()

	assert.Equal(t, []string{"p2", "o1"}, Neighbors(n, "p1"))
	assert.Equal(t, []string{"p1"}, Neighbors(n, "p2"))
	assert.Empty(t, Neighbors(n, "ghost"))
}

func TestClustersContaining(t *testing.T) {
	n := queryFixture()

	clusters := ClustersContaining(n, "p2")
	require.Len(t, clusters, 1)
	assert.Equal(t, "c1", clusters[0].ID)

	assert.Empty(t, ClustersContaining(n, "o1"))
}

func TestStats(t *testing.T) {
	t.Run("populated network", func(t *testing.T) {
		stats := Stats(queryFixture())

		assert.Equal(t, 3, stats.Entities)
		assert.Equal(t, 2, stats.Relationships)
		assert.Equal(t, 1, stats.Clusters)
		assert.Equal(t, 2, stats.EntitiesByType[EntityPerson])
		assert.Equal(t, 1, stats.EntitiesByType[EntityOrganization])
		assert.Equal(t, 1, stats.RelationshipsByType[RelationKnows])
		assert.Equal(t, 1, stats.RelationshipsByType[RelationWorksFor])
		assert.InDelta(t, 0.7, stats.AverageStrength, 1e-9)
	})

	t.Run("empty network", func(t *testing.T) {
		stats := Stats(&EntityNetwork{})

		assert.Zero(t, stats.Entities)
		assert.Zero(t, stats.AverageStrength)
		assert.Empty(t, stats.EntitiesByType)
	})
}
