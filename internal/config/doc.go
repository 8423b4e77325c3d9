// Package config loads the treeindex TOML configuration.
//
// A minimal file:
//
//	[meilisearch]
//	url = "http://127.0.0.1:7700"
//	api_key = "masterKey"
//
//	[[projects]]
//	id = "docs"
//	root = "/srv/docs"
//	schedule = "*/15 * * * *"
//
// MEILISEARCH_URL and MEILISEARCH_API_KEY override the file. Durations are
// written as Go duration strings ("30s", "5m"). Unknown keys are rejected so
// a misspelt setting does not silently fall back to its default.
package config
