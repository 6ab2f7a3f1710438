package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mention(id, name string, t EntityType, confidence float64, start int) Entity {
	return Entity{
		ID:   id,
		Type: t,
		Name: name,
		Metadata: EntityMetadata{
			Confidence: confidence,
			Importance: BaseImportance(t),
			Sources:    []SourceRef{{Start: start, End: start + len(name), Pattern: "test"}},
		},
	}
}

func TestMergeEntities(t *testing.T) {
	t.Run("first mention keeps its id", func(t *testing.T) {
		merged := MergeEntities([]Entity{
			mention("first", "John Smith", EntityPerson, 0.9, 0),
			mention("second", "John Smith", EntityPerson, 0.9, 40),
		})

		require.Len(t, merged, 1)
		assert.Equal(t, "first", merged[0].ID)
	})

	t.Run("confidence takes the maximum", func(t *testing.T) {
		merged := MergeEntities([]Entity{
			mention("a", "Acme Ltd", EntityOrganization, 0.7, 0),
			mention("b", "Acme Ltd", EntityOrganization, 0.95, 30),
			mention("c", "Acme Ltd", EntityOrganization, 0.8, 60),
		})

		require.Len(t, merged, 1)
		assert.Equal(t, 0.95, merged[0].Metadata.Confidence)
	})

	t.Run("importance grows per extra mention", func(t *testing.T) {
		merged := MergeEntities([]Entity{
			mention("a", "John Smith", EntityPerson, 0.9, 0),
			mention("b", "John Smith", EntityPerson, 0.9, 40),
			mention("c", "John Smith", EntityPerson, 0.9, 80),
		})

		require.Len(t, merged, 1)
		assert.InDelta(t, 0.9, merged[0].Metadata.Importance, 1e-9)
	})

	t.Run("importance is capped at one", func(t *testing.T) {
		mentions := make([]Entity, 0, 7)
		for i := 0; i < 7; i++ {
			mentions = append(mentions, mention("id", "John Smith", EntityPerson, 0.9, i*40))
		}

		merged := MergeEntities(mentions)

		require.Len(t, merged, 1)
		assert.Equal(t, 1.0, merged[0].Metadata.Importance)
	})

	t.Run("source refs accumulate in order", func(t *testing.T) {
		merged := MergeEntities([]Entity{
			mention("a", "John Smith", EntityPerson, 0.9, 0),
			mention("b", "John Smith", EntityPerson, 0.9, 40),
			mention("c", "John Smith", EntityPerson, 0.9, 80),
		})

		require.Len(t, merged, 1)
		require.Len(t, merged[0].Metadata.Sources, 3)
		assert.Equal(t, 0, merged[0].Metadata.Sources[0].Start)
		assert.Equal(t, 40, merged[0].Metadata.Sources[1].Start)
		assert.Equal(t, 80, merged[0].Metadata.Sources[2].Start)
	})

	t.Run("same name different type stays separate", func(t *testing.T) {
		merged := MergeEntities([]Entity{
			mention("a", "Paris", EntityPerson, 0.9, 0),
			mention("b", "Paris", EntityLocation, 0.7, 20),
		})

		assert.Len(t, merged, 2)
	})

	t.Run("aliases union sorted", func(t *testing.T) {
		first := mention("a", "John Smith", EntityPerson, 0.9, 0)
		first.Aliases = []string{"Smithy"}
		second := mention("b", "John Smith", EntityPerson, 0.9, 40)
		second.Aliases = []string{"J. Smith", "Smithy"}

		merged := MergeEntities([]Entity{first, second})

		require.Len(t, merged, 1)
		assert.Equal(t, []string{"J. Smith", "Smithy"}, merged[0].Aliases)
	})

	t.Run("verified is sticky", func(t *testing.T) {
		first := mention("a", "John Smith", EntityPerson, 0.9, 0)
		second := mention("b", "John Smith", EntityPerson, 0.9, 40)
		second.Metadata.Verified = true

		merged := MergeEntities([]Entity{first, second})

		require.Len(t, merged, 1)
		assert.True(t, merged[0].Metadata.Verified)
	})

	t.Run("input order is preserved", func(t *testing.T) {
		merged := MergeEntities([]Entity{
			mention("a", "John Smith", EntityPerson, 0.9, 0),
			mention("b", "Acme Ltd", EntityOrganization, 0.9, 20),
			mention("c", "John Smith", EntityPerson, 0.9, 50),
			mention("d", "Baker Street", EntityLocation, 0.8, 80),
		})

		require.Len(t, merged, 3)
		assert.Equal(t, "John Smith", merged[0].Name)
		assert.Equal(t, "Acme Ltd", merged[1].Name)
		assert.Equal(t, "Baker Street", merged[2].Name)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, MergeEntities(nil))
	})
}

func TestIsBidirectional(t *testing.T) {
	assert.True(t, IsBidirectional(RelationKnows))
	assert.True(t, IsBidirectional(RelationRelatedTo))
	assert.True(t, IsBidirectional(RelationContradicts))
	assert.True(t, IsBidirectional(RelationSupports))
	assert.False(t, IsBidirectional(RelationOwns))
	assert.False(t, IsBidirectional(RelationWorksFor))
	assert.False(t, IsBidirectional(RelationAuthored))
	assert.False(t, IsBidirectional(RelationLocatedAt))
	assert.False(t, IsBidirectional(RelationReferences))
}
