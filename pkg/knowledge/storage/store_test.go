package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgraph/lexgraph/pkg/knowledge"
)

func sampleNetwork(caseID string) *knowledge.EntityNetwork {
	return &knowledge.EntityNetwork{
		CaseID: caseID,
		Entities: []knowledge.Entity{
			{
				ID:      "p1",
				Type:    knowledge.EntityPerson,
				Name:    "John Smith",
				Aliases: []string{"J. Smith"},
				Metadata: knowledge.EntityMetadata{
					Confidence:    0.9,
					Importance:    0.8,
					ExtractedFrom: "statement.txt",
					Sources:       []knowledge.SourceRef{{Start: 3, End: 13, Pattern: "person_title"}},
				},
			},
			{
				ID:   "o1",
				Type: knowledge.EntityOrganization,
				Name: "Acme Holdings Ltd",
				Metadata: knowledge.EntityMetadata{
					Confidence: 0.85,
					Importance: 0.7,
				},
			},
		},
		Relationships: []knowledge.Relationship{
			{
				ID:       "r1",
				SourceID: "p1",
				TargetID: "o1",
				Type:     knowledge.RelationWorksFor,
				Strength: 0.65,
				Metadata: knowledge.RelationshipMetadata{
					Confidence: 0.8,
					Evidence:   []string{"John Smith works for Acme Holdings Ltd."},
					Source:     "statement.txt",
				},
			},
		},
		Clusters: []knowledge.EntityCluster{
			{
				ID:          "c1",
				Type:        knowledge.ClusterBusiness,
				EntityIDs:   []string{"o1", "p1"},
				Confidence:  0.75,
				Description: "Business network of 1 organizations and associates",
			},
		},
		GeneratedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestJSONGraphStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a network", func(t *testing.T) {
		store := NewJSONGraphStore(t.TempDir())
		network := sampleNetwork("case-42")

		require.NoError(t, store.SaveNetwork(ctx, network))

		loaded, err := store.LoadNetwork(ctx, "case-42")
		require.NoError(t, err)
		assert.Equal(t, network, loaded)
	})

	t.Run("save replaces the previous network", func(t *testing.T) {
		store := NewJSONGraphStore(t.TempDir())
		require.NoError(t, store.SaveNetwork(ctx, sampleNetwork("case-42")))

		updated := sampleNetwork("case-42")
		updated.Entities = updated.Entities[:1]
		require.NoError(t, store.SaveNetwork(ctx, updated))

		loaded, err := store.LoadNetwork(ctx, "case-42")
		require.NoError(t, err)
		assert.Len(t, loaded.Entities, 1)
	})

	t.Run("creates the directory on first save", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "graphs")
		store := NewJSONGraphStore(dir)

		require.NoError(t, store.SaveNetwork(ctx, sampleNetwork("case-1")))

		_, err := os.Stat(filepath.Join(dir, "case-1.json"))
		assert.NoError(t, err)
	})

	t.Run("load fails for an unknown case", func(t *testing.T) {
		store := NewJSONGraphStore(t.TempDir())

		_, err := store.LoadNetwork(ctx, "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.json")
	})

	t.Run("lists stored cases", func(t *testing.T) {
		store := NewJSONGraphStore(t.TempDir())
		require.NoError(t, store.SaveNetwork(ctx, sampleNetwork("case-a")))
		require.NoError(t, store.SaveNetwork(ctx, sampleNetwork("case-b")))

		cases, err := store.Cases()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"case-a", "case-b"}, cases)
	})

	t.Run("lists nothing before the first save", func(t *testing.T) {
		store := NewJSONGraphStore(filepath.Join(t.TempDir(), "never-created"))

		cases, err := store.Cases()
		require.NoError(t, err)
		assert.Empty(t, cases)
	})
}

func TestPathFor(t *testing.T) {
	store := NewJSONGraphStore("graphs")

	tests := []struct {
		name   string
		caseID string
		want   string
	}{
		{name: "plain id", caseID: "case-42", want: "case-42.json"},
		{name: "separators and spaces replaced", caseID: "a/b c", want: "a_b_c.json"},
		{name: "traversal neutralised", caseID: "../../etc/passwd", want: ".._.._etc_passwd.json"},
		{name: "empty id gets a default", caseID: "", want: "case.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.Join("graphs", tt.want), store.pathFor(tt.caseID))
		})
	}
}
