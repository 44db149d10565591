package catalog

import "github.com/kailas-cloud/librarian/internal/db"

// buildIndex defines the catalog schema: title_key for exact lookups and an HNSW COSINE vector.
// title_key uses "|" as separator so commas inside titles do not split the tag.
func buildIndex(name, prefix string, vectorDim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		TagWithOpts(fieldTitleKey, "|", false).
		VectorHNSW(fieldVector, vectorDim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).As("vector").
		Build()
}
