// Package search is the boundary to the search engine.
//
// Backend describes the handful of index and document operations the sync
// pipeline performs. Client implements it on the official Meilisearch SDK,
// waiting on every asynchronous task so callers observe completed writes.
// Memory implements it in process for dry runs and tests.
//
// Filter expresses the deletion predicate as a conjunction of comparisons and
// renders it in the engine's filter syntax.
package search
