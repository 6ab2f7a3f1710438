package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topics   []string
	networks []*EntityNetwork
}

func (p *recordingPublisher) Publish(topic string, network *EntityNetwork) {
	p.topics = append(p.topics, topic)
	p.networks = append(p.networks, network)
}

func TestAssemblerAssemble(t *testing.T) {
	t.Run("publishes once under the case id", func(t *testing.T) {
		pub := &recordingPublisher{}
		assembler := NewAssembler(pub)
		entities := []Entity{person("p1"), person("p2")}

		network := assembler.Assemble("case-7", entities, nil, nil)

		require.NotNil(t, network)
		require.Len(t, pub.topics, 1)
		assert.Equal(t, "case-7", pub.topics[0])
		assert.Same(t, network, pub.networks[0])
		assert.Equal(t, "case-7", network.CaseID)
		assert.Equal(t, entities, network.Entities)
	})

	t.Run("drops relationships with unknown endpoints", func(t *testing.T) {
		assembler := NewAssembler(nil)
		entities := []Entity{person("p1"), person("p2")}
		rels := []Relationship{
			edge("p1", "p2", RelationKnows),
			edge("p1", "ghost", RelationKnows),
			edge("ghost", "p2", RelationKnows),
		}

		network := assembler.Assemble("case-1", entities, rels, nil)

		require.Len(t, network.Relationships, 1)
		assert.Equal(t, "p1", network.Relationships[0].SourceID)
		assert.Equal(t, "p2", network.Relationships[0].TargetID)
	})

	t.Run("prunes unresolvable cluster members", func(t *testing.T) {
		assembler := NewAssembler(nil)
		entities := []Entity{person("p1")}
		clusters := []EntityCluster{
			{ID: "c1", Type: ClusterFamily, EntityIDs: []string{"p1", "ghost"}},
			{ID: "c2", Type: ClusterFamily, EntityIDs: []string{"ghost"}},
		}

		network := assembler.Assemble("case-2", entities, nil, clusters)

		require.Len(t, network.Clusters, 1)
		assert.Equal(t, "c1", network.Clusters[0].ID)
		assert.Equal(t, []string{"p1"}, network.Clusters[0].EntityIDs)
	})

	t.Run("stamps generation time", func(t *testing.T) {
		assembler := NewAssembler(nil)

		network := assembler.Assemble("case-3", []Entity{person("p1")}, nil, nil)

		assert.WithinDuration(t, time.Now(), network.GeneratedAt, time.Second)
	})

	t.Run("nil publisher still assembles", func(t *testing.T) {
		assembler := NewAssembler(nil)

		network := assembler.Assemble("case-4", nil, nil, nil)

		require.NotNil(t, network)
		assert.Empty(t, network.Relationships)
		assert.Empty(t, network.Clusters)
	})
}
