package driver

// Entities are (:Entity {id, nom, type, ...fields}) where type is the kind's
// French label. Relations are [:RELATION {type, quantite, unite}] edges from
// subject to object; the relation code lives in a property because Cypher
// cannot parameterize relationship types.
const (
	SaveEntityQuery = `
		MERGE (n:Entity {id: $id})
		SET n += $props,
			n.type = $type
		RETURN n.id AS id
	`

	ListEntitiesQuery = `
		MATCH (n:Entity {type: $type})
		RETURN properties(n) AS props
		ORDER BY n.nom, n.id
	`

	ListRelationsQuery = `
		MATCH (s:Entity {type: $type})-[r:RELATION]->(o:Entity)
		RETURN s.id AS subject_id, r.type AS relation_type, o.id AS object_id,
			o.nom AS object_name, r.quantite AS quantite, r.unite AS unite
		ORDER BY s.id, r.type, o.id
	`

	CreateRelationQuery = `
		MATCH (s:Entity {type: $subject_type})
		WHERE s.id IN $subject_ids
		MATCH (o:Entity {type: $object_type})
		WHERE o.id IN $object_ids
		WITH s, o LIMIT 1
		MERGE (s)-[r:RELATION {type: $relation_type}]->(o)
		SET r += $attributes
		RETURN count(r) AS created
	`

	DeleteRelationQuery = `
		MATCH (s:Entity {type: $subject_type})-[r:RELATION {type: $relation_type}]->(o:Entity)
		WHERE s.id IN $subject_ids AND o.id IN $object_ids
		WITH collect(r) AS rels
		FOREACH (x IN rels | DELETE x)
		RETURN size(rels) AS deleted
	`

	SearchStatsQuery = `
		MATCH (n:Entity)
		RETURN n.type AS type, count(n) AS count
	`
)

// searchEntitiesTemplate is completed with the WHERE clause built from a
// query interpretation.
const searchEntitiesTemplate = `MATCH (n:Entity {type: $type})
%s
RETURN properties(n) AS props
ORDER BY n.nom
LIMIT $limit`

var IndexQueries = []string{
	"CREATE INDEX ON :Entity(id);",
	"CREATE INDEX ON :Entity(type);",
}
