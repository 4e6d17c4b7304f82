package planner

// Every entity node carries the :Entity label plus its type label. Name
// matching is case-insensitive containment so partial names resolve.

const matchNamed = `toLower(e.name) CONTAINS toLower(name)`

const (
	cypherEntityDetails = `
UNWIND $names AS name
MATCH (e:Entity)
WHERE ` + matchNamed + `
RETURN DISTINCT e.id AS id, e.name AS name, e.type AS type, properties(e) AS properties
LIMIT $limit`

	cypherEntityRelationships = `
UNWIND $names AS name
MATCH (e:Entity)-[r]-(other:Entity)
WHERE ` + matchNamed + `
RETURN e.id AS fromId, e.name AS fromName, type(r) AS type,
       other.id AS toId, other.name AS toName, other.type AS toType,
       coalesce(r.confidence, 1.0) AS confidence
ORDER BY confidence DESC
LIMIT $limit`

	cypherDirectRelationships = `
UNWIND $names AS name
MATCH (e:Entity)-[r]->(other:Entity)
WHERE ` + matchNamed + `
RETURN e.id AS fromId, e.name AS fromName, type(r) AS type,
       other.id AS toId, other.name AS toName, other.type AS toType,
       coalesce(r.confidence, 1.0) AS confidence
ORDER BY confidence DESC
LIMIT $limit`

	cypherShortestPath = `
MATCH (a:Entity), (b:Entity)
WHERE toLower(a.name) CONTAINS toLower($from)
  AND toLower(b.name) CONTAINS toLower($to)
  AND a <> b
MATCH p = shortestPath((a)-[*..4]-(b))
RETURN [n IN nodes(p) | n.name] AS path,
       [r IN relationships(p) | type(r)] AS relTypes,
       length(p) AS hops
ORDER BY hops
LIMIT 1`

	cypherEntityConnections = `
UNWIND $names AS name
MATCH (e:Entity)-[*1..2]-(c:Entity)
WHERE ` + matchNamed + ` AND c <> e
RETURN e.id AS id, e.name AS name, count(DISTINCT c) AS connections
ORDER BY connections DESC`

	cypherPortfolioHoldings = `
UNWIND $names AS name
MATCH (e:Entity)-[r:INVESTS_IN]->(c:Entity)
WHERE ` + matchNamed + `
RETURN e.name AS investor, c.id AS id, c.name AS name, c.type AS type,
       c.sector AS sector, c.country AS country,
       coalesce(r.amount, c.total_investment, 0) AS amount
ORDER BY amount DESC
LIMIT $limit`

	cypherSectorBreakdown = `
MATCH (e:Entity)-[r:INVESTS_IN]->(c:Entity)
WHERE ($names = [] OR any(name IN $names WHERE ` + matchNamed + `))
  AND ($sectors = [] OR toLower(c.sector) IN $sectors)
RETURN coalesce(c.sector, 'unknown') AS sector, count(DISTINCT c) AS holdings,
       sum(coalesce(r.amount, c.total_investment, 0)) AS totalValue
ORDER BY totalValue DESC`

	cypherEntityPerformance = `
UNWIND $names AS name
MATCH (e:Entity)
WHERE ` + matchNamed + `
RETURN DISTINCT e.id AS id, e.name AS name, e.type AS type, e.irr AS irr, e.moic AS moic,
       coalesce(e.total_investment, e.aum, 0) AS totalValue`

	cypherSectorPerformance = `
MATCH (e:Entity)
WHERE toLower(e.sector) IN $sectors
RETURN e.sector AS sector, avg(e.irr) AS avgIrr, avg(e.moic) AS avgMoic,
       sum(coalesce(e.total_investment, 0)) AS totalValue, count(e) AS entities
ORDER BY totalValue DESC`

	cypherTopPerformers = `
MATCH (e:Entity)
WHERE ($sectors = [] OR toLower(e.sector) IN $sectors)
  AND coalesce(e.total_investment, e.aum) IS NOT NULL
RETURN e.id AS id, e.name AS name, e.type AS type, e.irr AS irr, e.moic AS moic,
       coalesce(e.total_investment, e.aum, 0) AS totalValue
ORDER BY totalValue DESC
LIMIT $limit`

	cypherInvestmentTrends = `
MATCH (e:Entity)-[r:INVESTS_IN]->(c:Entity)
WHERE r.year IS NOT NULL
  AND ($names = [] OR any(name IN $names WHERE ` + matchNamed + `))
  AND ($fromYear = 0 OR r.year >= $fromYear)
  AND ($toYear = 0 OR r.year <= $toYear)
RETURN r.year AS year, count(r) AS deals, sum(coalesce(r.amount, 0)) AS totalValue
ORDER BY year`

	cypherSectorTrends = `
MATCH (e:Entity)-[r:INVESTS_IN]->(c:Entity)
WHERE r.year IS NOT NULL
  AND toLower(c.sector) IN $sectors
  AND ($fromYear = 0 OR r.year >= $fromYear)
  AND ($toYear = 0 OR r.year <= $toYear)
RETURN c.sector AS sector, r.year AS year, count(r) AS deals,
       sum(coalesce(r.amount, 0)) AS totalValue
ORDER BY sector, year`

	cypherEntityComparison = `
UNWIND $names AS name
MATCH (e:Entity)
WHERE ` + matchNamed + `
OPTIONAL MATCH (e)-[r]-()
RETURN e.id AS id, e.name AS name, e.type AS type, e.sector AS sector, e.country AS country,
       e.irr AS irr, e.moic AS moic, e.valuation AS valuation,
       coalesce(e.total_investment, e.aum, 0) AS totalValue, count(r) AS connections`

	cypherSectorComparison = `
MATCH (e:Entity)
WHERE toLower(e.sector) IN $sectors
RETURN e.sector AS sector, count(e) AS entities, avg(e.irr) AS avgIrr,
       sum(coalesce(e.total_investment, 0)) AS totalValue`

	cypherEntityDiscovery = `
MATCH (e:Entity)
WHERE ($sectors = [] OR toLower(e.sector) IN $sectors)
  AND ($geographies = [] OR toLower(e.country) IN $geographies OR toLower(e.city) IN $geographies)
  AND ($minAmount = 0 OR coalesce(e.total_investment, 0) >= $minAmount)
RETURN e.id AS id, e.name AS name, e.type AS type, e.sector AS sector, e.country AS country,
       coalesce(e.total_investment, 0) AS totalValue
ORDER BY totalValue DESC
LIMIT $limit`

	cypherSimilarEntities = `
UNWIND $names AS name
MATCH (e:Entity)
WHERE ` + matchNamed + `
MATCH (s:Entity)
WHERE s <> e AND s.sector IS NOT NULL AND s.sector = e.sector
RETURN DISTINCT s.id AS id, s.name AS name, s.type AS type, s.sector AS sector, s.country AS country
LIMIT $limit`

	cypherEntityNetwork = `
UNWIND $names AS name
MATCH (e:Entity)-[r]-(n:Entity)
WHERE ` + matchNamed + `
OPTIONAL MATCH (n)-[r2]-()
RETURN e.id AS fromId, e.name AS fromName, type(r) AS type,
       n.id AS toId, n.name AS toName, n.type AS toType, count(r2) AS degree
ORDER BY degree DESC
LIMIT $limit`

	cypherCentralEntities = `
MATCH (e:Entity)-[r]-()
WHERE ($sectors = [] OR toLower(e.sector) IN $sectors)
WITH e, count(r) AS degree
RETURN e.id AS id, e.name AS name, e.type AS type, degree
ORDER BY degree DESC
LIMIT $limit`
)
