package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entitiesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_entities_extracted_total",
			Help: "Number of entities extracted from source text",
		},
		[]string{"entity_type"},
	)

	relationshipsMapped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_relationships_mapped_total",
			Help: "Number of relationships inferred between entities",
		},
		[]string{"relationship_type"},
	)

	clustersBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_clusters_built_total",
			Help: "Number of entity clusters formed",
		},
		[]string{"cluster_type"},
	)

	networksPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "knowledge_networks_published_total",
			Help: "Number of entity networks published to subscribers",
		},
	)

	networkEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "knowledge_network_entities",
			Help: "Entities in the most recently assembled network",
		},
		[]string{"entity_type"},
	)

	networkRelationships = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "knowledge_network_relationships",
			Help: "Relationships in the most recently assembled network",
		},
	)
)

func recordNetworkSize(network *EntityNetwork) {
	counts := make(map[EntityType]int)
	for _, e := range network.Entities {
		counts[e.Type]++
	}
	networkEntities.Reset()
	for t, n := range counts {
		networkEntities.WithLabelValues(string(t)).Set(float64(n))
	}
	networkRelationships.Set(float64(len(network.Relationships)))
}
