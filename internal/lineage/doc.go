// Package lineage extracts sequential multi-point patterns ("lineages") from
// a time-ordered series of swing points.
//
// A ChainSpec describes the pattern as a list of ranked links. Each rank is
// bound to a swing point whose kind is derived from the previous rank's
// point (identical or opposite) and whose extreme may be required to lie
// behind or beyond its parent's. The pipeline run by Engine.Scan is:
//
//	build chains -> validate links -> extract instances -> tag intruders/outlaws
//	-> locate POI -> mitigation filters -> selection
//
// Every stage is a synchronous in-memory transformation. Points are never
// mutated; per-instance data lives on Instance.
package lineage
