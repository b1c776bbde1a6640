package cache

import (
	"strings"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

var fieldEscaper = strings.NewReplacer("%", "%25", "|", "%7C", ",", "%2C")

func normField(s string) string {
	return fieldEscaper.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// DeriveKey builds the canonical cache key for req:
//
//	keyword|city,state|sub=<subcategory>   or   keyword|city,state|nosub
//
// Fields are trimmed and lowercased; separator characters inside a field are
// percent-escaped so distinct requests never collide. An empty subcategory
// is distinct from an absent one. Page and limit are not part of the key.
func DeriveKey(req models.SearchRequest) models.CacheKey {
	var b strings.Builder
	b.WriteString(normField(req.Keyword))
	b.WriteByte('|')
	b.WriteString(normField(req.City))
	b.WriteByte(',')
	b.WriteString(normField(req.State))
	b.WriteByte('|')
	if sub, ok := req.SubcategoryValue(); ok {
		b.WriteString("sub=")
		b.WriteString(normField(sub))
	} else {
		b.WriteString("nosub")
	}
	return models.CacheKey(b.String())
}
