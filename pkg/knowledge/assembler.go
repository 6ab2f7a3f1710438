package knowledge

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// Assembler builds a publishable EntityNetwork out of the extraction
// stages' raw output. It guarantees referential integrity: every edge
// endpoint and every cluster member resolves to a known entity.
type Assembler struct {
	publisher Publisher
	logger    *logrus.Logger
}

// NewAssembler creates an assembler. publisher may be nil, in which
// case assembled networks are returned but not announced.
func NewAssembler(publisher Publisher) *Assembler {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Assembler{
		publisher: publisher,
		logger:    logger,
	}
}

// Assemble validates the pieces, stamps the network and publishes it
// under the case id. Relationships pointing at unknown entities are
// dropped, as are cluster members that do not resolve; a cluster left
// with no members disappears with them.
func (a *Assembler) Assemble(caseID string, entities []Entity, relationships []Relationship, clusters []EntityCluster) *EntityNetwork {
	known := mapset.NewSet[string]()
	for _, e := range entities {
		known.Add(e.ID)
	}

	keptRels := make([]Relationship, 0, len(relationships))
	for _, rel := range relationships {
		if !known.Contains(rel.SourceID) || !known.Contains(rel.TargetID) {
			a.logger.WithFields(logrus.Fields{
				"relationship_id": rel.ID,
				"type":            rel.Type,
			}).Warn("Dropping relationship with unknown endpoint")
			continue
		}
		keptRels = append(keptRels, rel)
	}

	keptClusters := make([]EntityCluster, 0, len(clusters))
	for _, cluster := range clusters {
		ids := make([]string, 0, len(cluster.EntityIDs))
		for _, id := range cluster.EntityIDs {
			if known.Contains(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			a.logger.WithField("cluster_id", cluster.ID).Warn("Dropping cluster with no resolvable members")
			continue
		}
		cluster.EntityIDs = ids
		keptClusters = append(keptClusters, cluster)
	}

	network := &EntityNetwork{
		CaseID:        caseID,
		Entities:      entities,
		Relationships: keptRels,
		Clusters:      keptClusters,
		GeneratedAt:   time.Now(),
	}

	recordNetworkSize(network)

	if a.publisher != nil {
		a.publisher.Publish(caseID, network)
		networksPublished.Inc()
	}

	a.logger.WithFields(logrus.Fields{
		"case_id":             caseID,
		"entities_count":      len(network.Entities),
		"relationships_count": len(network.Relationships),
		"clusters_count":      len(network.Clusters),
	}).Info("Entity network assembled")

	return network
}
