package knowledge

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// EntityType classifies a node in the entity network
type EntityType string

const (
	EntityPerson         EntityType = "person"
	EntityOrganization   EntityType = "organization"
	EntityLocation       EntityType = "location"
	EntityDocument       EntityType = "document"
	EntityConcept        EntityType = "concept"
	EntityDate           EntityType = "date"
	EntityAmount         EntityType = "amount"
	EntityLegalPrinciple EntityType = "legal_principle"
)

// RelationshipType classifies an edge between two entities
type RelationshipType string

const (
	RelationOwns        RelationshipType = "owns"
	RelationWorksFor    RelationshipType = "works_for"
	RelationLocatedAt   RelationshipType = "located_at"
	RelationAuthored    RelationshipType = "authored"
	RelationReferences  RelationshipType = "references"
	RelationKnows       RelationshipType = "knows"
	RelationRelatedTo   RelationshipType = "related_to"
	RelationContradicts RelationshipType = "contradicts"
	RelationSupports    RelationshipType = "supports"
)

var bidirectionalRelations = mapset.NewSet(
	RelationKnows,
	RelationRelatedTo,
	RelationContradicts,
	RelationSupports,
)

// IsBidirectional reports whether edges of the given type carry no direction
func IsBidirectional(t RelationshipType) bool {
	return bidirectionalRelations.Contains(t)
}

// ClusterType classifies a grouping of entities
type ClusterType string

const (
	ClusterFamily        ClusterType = "family"
	ClusterBusiness      ClusterType = "business"
	ClusterLegalTeam     ClusterType = "legal_team"
	ClusterEvidenceChain ClusterType = "evidence_chain"
	ClusterTimeline      ClusterType = "timeline"
	ClusterLocationBased ClusterType = "location_based"
)

// SourceRef records where in a source text an entity was matched
type SourceRef struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Pattern string `json:"pattern"`
}

// EntityMetadata carries extraction provenance and scoring for an entity
type EntityMetadata struct {
	Confidence    float64     `json:"confidence"`
	Importance    float64     `json:"importance"`
	Verified      bool        `json:"verified"`
	ExtractedFrom string      `json:"extracted_from,omitempty"`
	Sources       []SourceRef `json:"sources,omitempty"`
}

// Entity represents a node in the entity network
type Entity struct {
	ID       string         `json:"id"`
	Type     EntityType     `json:"type"`
	Name     string         `json:"name"`
	Aliases  []string       `json:"aliases,omitempty"`
	Metadata EntityMetadata `json:"metadata"`
}

// RelationshipMetadata carries scoring and supporting evidence for an edge
type RelationshipMetadata struct {
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// Relationship represents an edge in the entity network
type Relationship struct {
	ID            string               `json:"id"`
	SourceID      string               `json:"source_id"`
	TargetID      string               `json:"target_id"`
	Type          RelationshipType     `json:"type"`
	Strength      float64              `json:"strength"`
	Bidirectional bool                 `json:"bidirectional"`
	Metadata      RelationshipMetadata `json:"metadata"`
}

// EntityCluster groups related entities discovered by a clustering rule
type EntityCluster struct {
	ID          string      `json:"id"`
	Type        ClusterType `json:"type"`
	EntityIDs   []string    `json:"entity_ids"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description"`
}

// EntityNetwork is the assembled knowledge graph for a single case
type EntityNetwork struct {
	CaseID        string          `json:"case_id"`
	Entities      []Entity        `json:"entities"`
	Relationships []Relationship  `json:"relationships"`
	Clusters      []EntityCluster `json:"clusters"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// Publisher receives assembled networks, keyed by case id
type Publisher interface {
	Publish(topic string, network *EntityNetwork)
}
