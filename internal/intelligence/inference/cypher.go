package inference

// Candidate queries. Symmetric patterns order pairs by id so each pair is
// proposed once.
const (
	cypherCoInvestment = `
MATCH (a:Entity)-[:INVESTS_IN]->(c:Entity)<-[:INVESTS_IN]-(b:Entity)
WHERE a.id < b.id
WITH a, b, collect(DISTINCT c.name) AS shared
RETURN a.id AS fromId, a.name AS fromName, b.id AS toId, b.name AS toName,
       size(shared) AS count, shared
ORDER BY count DESC
LIMIT $limit`

	cypherGeographicClustering = `
MATCH (a:Entity), (b:Entity)
WHERE a.id < b.id AND a.type = b.type
  AND a.city IS NOT NULL AND toLower(a.city) = toLower(b.city)
  AND a.country IS NOT NULL AND toLower(a.country) = toLower(b.country)
RETURN a.id AS fromId, a.name AS fromName, b.id AS toId, b.name AS toName,
       1 AS count, [a.city, a.country] AS shared
LIMIT $limit`

	cypherSectorAlignment = `
MATCH (a:Entity)-[:INVESTS_IN]->(x:Entity), (b:Entity)-[:INVESTS_IN]->(y:Entity)
WHERE a.id < b.id AND x.sector IS NOT NULL AND toLower(x.sector) = toLower(y.sector)
WITH a, b, collect(DISTINCT x.sector) AS shared
WHERE size(shared) >= 2
RETURN a.id AS fromId, a.name AS fromName, b.id AS toId, b.name AS toName,
       size(shared) AS count, shared
ORDER BY count DESC
LIMIT $limit`

	cypherFollowOnInvestment = `
MATCH (lead:Entity)-[r1:INVESTS_IN]->(c:Entity)<-[r2:INVESTS_IN]-(follower:Entity)
WHERE lead <> follower AND r1.year IS NOT NULL AND r2.year > r1.year
WITH follower, lead, collect(DISTINCT c.name) AS shared
RETURN follower.id AS fromId, follower.name AS fromName, lead.id AS toId, lead.name AS toName,
       size(shared) AS count, shared
ORDER BY count DESC
LIMIT $limit`

	cypherSharedPersonnel = `
MATCH (a:Entity)<-[:WORKS_AT]-(p:Entity)-[:WORKS_AT]->(b:Entity)
WHERE a.id < b.id
WITH a, b, collect(DISTINCT p.name) AS shared
RETURN a.id AS fromId, a.name AS fromName, b.id AS toId, b.name AS toName,
       size(shared) AS count, shared
ORDER BY count DESC
LIMIT $limit`

	cypherCorporateStructure = `
MATCH (parent:Entity), (child:Entity)
WHERE parent.id <> child.id AND parent.type = child.type
  AND size(parent.name) >= 4 AND parent.name <> child.name
  AND toLower(child.name) CONTAINS toLower(parent.name)
RETURN child.id AS fromId, child.name AS fromName, parent.id AS toId, parent.name AS toName,
       1 AS count, [parent.name] AS shared
LIMIT $limit`

	cypherDealCollaboration = `
MATCH (a:Entity)-[:PARTICIPATED_IN]->(d:Entity)<-[:PARTICIPATED_IN]-(b:Entity)
WHERE a.id < b.id
WITH a, b, collect(DISTINCT d.name) AS shared
RETURN a.id AS fromId, a.name AS fromName, b.id AS toId, b.name AS toName,
       size(shared) AS count, shared
ORDER BY count DESC
LIMIT $limit`

	cypherEntitySimilarity = `
MATCH (a:Entity), (b:Entity)
WHERE a.id < b.id AND a.type = b.type
  AND (toLower(a.country) = toLower(b.country) OR toLower(a.sector) = toLower(b.sector))
RETURN a.id AS fromId, a.name AS fromName, b.id AS toId, b.name AS toName,
       a.country AS fromCountry, b.country AS toCountry,
       a.sector AS fromSector, b.sector AS toSector,
       1 AS count, [] AS shared
LIMIT $limit`
)
