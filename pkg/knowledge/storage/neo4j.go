package storage

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"

	"github.com/lexgraph/lexgraph/pkg/knowledge"
)

// Neo4jGraphStore mirrors entity networks into Neo4j. Entities become
// Entity nodes, relationships become RELATES edges carrying their type
// as a property, clusters become Cluster nodes with MEMBER_OF edges.
// Saving a case replaces whatever was stored for it before.
type Neo4jGraphStore struct {
	driver neo4j.Driver
}

// NewNeo4jGraphStore connects to Neo4j with basic auth
func NewNeo4jGraphStore(uri, username, password string) (*Neo4jGraphStore, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "create neo4j driver")
	}
	return &Neo4jGraphStore{driver: driver}, nil
}

// Close shuts the underlying driver down
func (s *Neo4jGraphStore) Close() error {
	return s.driver.Close()
}

// SaveNetwork writes the network in one transaction
func (s *Neo4jGraphStore) SaveNetwork(_ context.Context, network *knowledge.EntityNetwork) error {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		caseID := network.CaseID

		// Replace the previous version of this case wholesale
		for _, cypher := range []string{
			`MATCH (e:Entity {case_id: $case_id}) DETACH DELETE e`,
			`MATCH (c:Cluster {case_id: $case_id}) DETACH DELETE c`,
		} {
			if _, err := tx.Run(cypher, map[string]interface{}{"case_id": caseID}); err != nil {
				return nil, err
			}
		}

		if _, err := tx.Run(`
			MERGE (c:Case {id: $case_id})
			SET c.generated_at = $generated_at
		`, map[string]interface{}{
			"case_id":      caseID,
			"generated_at": network.GeneratedAt.Format(time.RFC3339Nano),
		}); err != nil {
			return nil, err
		}

		for _, e := range network.Entities {
			if _, err := tx.Run(`
				CREATE (n:Entity {
					case_id: $case_id,
					id: $id,
					type: $type,
					name: $name,
					aliases: $aliases,
					confidence: $confidence,
					importance: $importance,
					verified: $verified,
					extracted_from: $extracted_from
				})
			`, map[string]interface{}{
				"case_id":        caseID,
				"id":             e.ID,
				"type":           string(e.Type),
				"name":           e.Name,
				"aliases":        e.Aliases,
				"confidence":     e.Metadata.Confidence,
				"importance":     e.Metadata.Importance,
				"verified":       e.Metadata.Verified,
				"extracted_from": e.Metadata.ExtractedFrom,
			}); err != nil {
				return nil, err
			}
		}

		for _, rel := range network.Relationships {
			if _, err := tx.Run(`
				MATCH (from:Entity {case_id: $case_id, id: $from_id})
				MATCH (to:Entity {case_id: $case_id, id: $to_id})
				CREATE (from)-[r:RELATES {
					id: $id,
					type: $type,
					strength: $strength,
					bidirectional: $bidirectional,
					confidence: $confidence
				}]->(to)
			`, map[string]interface{}{
				"case_id":       caseID,
				"id":            rel.ID,
				"from_id":       rel.SourceID,
				"to_id":         rel.TargetID,
				"type":          string(rel.Type),
				"strength":      rel.Strength,
				"bidirectional": rel.Bidirectional,
				"confidence":    rel.Metadata.Confidence,
			}); err != nil {
				return nil, err
			}
		}

		for _, cluster := range network.Clusters {
			if _, err := tx.Run(`
				CREATE (c:Cluster {
					case_id: $case_id,
					id: $id,
					type: $type,
					confidence: $confidence,
					description: $description
				})
			`, map[string]interface{}{
				"case_id":     caseID,
				"id":          cluster.ID,
				"type":        string(cluster.Type),
				"confidence":  cluster.Confidence,
				"description": cluster.Description,
			}); err != nil {
				return nil, err
			}
			for _, memberID := range cluster.EntityIDs {
				if _, err := tx.Run(`
					MATCH (e:Entity {case_id: $case_id, id: $entity_id})
					MATCH (c:Cluster {case_id: $case_id, id: $cluster_id})
					CREATE (e)-[:MEMBER_OF]->(c)
				`, map[string]interface{}{
					"case_id":    caseID,
					"entity_id":  memberID,
					"cluster_id": cluster.ID,
				}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return errors.Wrap(err, "save network")
}

// LoadNetwork reads a case's network back out of the graph
func (s *Neo4jGraphStore) LoadNetwork(_ context.Context, caseID string) (*knowledge.EntityNetwork, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		network := &knowledge.EntityNetwork{CaseID: caseID}
		params := map[string]interface{}{"case_id": caseID}

		caseRes, err := tx.Run(`MATCH (c:Case {id: $case_id}) RETURN c.generated_at`, params)
		if err != nil {
			return nil, err
		}
		if caseRes.Next() {
			if raw, ok := caseRes.Record().Values[0].(string); ok {
				if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
					network.GeneratedAt = at
				}
			}
		}

		entRes, err := tx.Run(`
			MATCH (e:Entity {case_id: $case_id})
			RETURN e ORDER BY e.name, e.id
		`, params)
		if err != nil {
			return nil, err
		}
		for entRes.Next() {
			node, ok := entRes.Record().Values[0].(neo4j.Node)
			if !ok {
				continue
			}
			network.Entities = append(network.Entities, knowledge.Entity{
				ID:      propString(node.Props, "id"),
				Type:    knowledge.EntityType(propString(node.Props, "type")),
				Name:    propString(node.Props, "name"),
				Aliases: propStrings(node.Props, "aliases"),
				Metadata: knowledge.EntityMetadata{
					Confidence:    propFloat(node.Props, "confidence"),
					Importance:    propFloat(node.Props, "importance"),
					Verified:      propBool(node.Props, "verified"),
					ExtractedFrom: propString(node.Props, "extracted_from"),
				},
			})
		}

		relRes, err := tx.Run(`
			MATCH (a:Entity {case_id: $case_id})-[r:RELATES]->(b:Entity {case_id: $case_id})
			RETURN r, a.id, b.id ORDER BY r.id
		`, params)
		if err != nil {
			return nil, err
		}
		for relRes.Next() {
			record := relRes.Record()
			edge, ok := record.Values[0].(neo4j.Relationship)
			if !ok {
				continue
			}
			fromID, _ := record.Values[1].(string)
			toID, _ := record.Values[2].(string)
			network.Relationships = append(network.Relationships, knowledge.Relationship{
				ID:            propString(edge.Props, "id"),
				SourceID:      fromID,
				TargetID:      toID,
				Type:          knowledge.RelationshipType(propString(edge.Props, "type")),
				Strength:      propFloat(edge.Props, "strength"),
				Bidirectional: propBool(edge.Props, "bidirectional"),
				Metadata: knowledge.RelationshipMetadata{
					Confidence: propFloat(edge.Props, "confidence"),
				},
			})
		}

		clusterRes, err := tx.Run(`
			MATCH (c:Cluster {case_id: $case_id})
			OPTIONAL MATCH (m:Entity)-[:MEMBER_OF]->(c)
			RETURN c, collect(m.id) ORDER BY c.id
		`, params)
		if err != nil {
			return nil, err
		}
		for clusterRes.Next() {
			record := clusterRes.Record()
			node, ok := record.Values[0].(neo4j.Node)
			if !ok {
				continue
			}
			members := make([]string, 0)
			if raw, ok := record.Values[1].([]interface{}); ok {
				for _, v := range raw {
					if id, ok := v.(string); ok {
						members = append(members, id)
					}
				}
			}
			network.Clusters = append(network.Clusters, knowledge.EntityCluster{
				ID:          propString(node.Props, "id"),
				Type:        knowledge.ClusterType(propString(node.Props, "type")),
				EntityIDs:   members,
				Confidence:  propFloat(node.Props, "confidence"),
				Description: propString(node.Props, "description"),
			})
		}

		return network, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load network")
	}
	return result.(*knowledge.EntityNetwork), nil
}

func propString(props map[string]interface{}, key string) string {
	v, _ := props[key].(string)
	return v
}

func propFloat(props map[string]interface{}, key string) float64 {
	v, _ := props[key].(float64)
	return v
}

func propBool(props map[string]interface{}, key string) bool {
	v, _ := props[key].(bool)
	return v
}

func propStrings(props map[string]interface{}, key string) []string {
	raw, ok := props[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
