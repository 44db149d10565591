package db

import (
	"encoding/binary"
	"math"
	"strings"
)

// MatchAll is the FT.SEARCH query that matches every indexed document.
const MatchAll = "*"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// For KNN results Distance holds the raw __vector_score.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}

// TagQuery builds an exact TAG match, e.g. @title_key:{the\ hobbit}.
func TagQuery(field, value string) string {
	return "@" + field + ":{" + tagEscaper.Replace(value) + "}"
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	"?", "\\?",
	" ", "\\ ",
)

// VectorBytes encodes a vector as FLOAT32 little-endian bytes, the layout both
// HASH vector fields and KNN query blobs use.
func VectorBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
