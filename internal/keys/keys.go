// Package keys encodes and decodes the composite partition/sort key
// scheme shared by every record in the store.
package keys

import (
	"strings"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
)

const separator = "#"

// Encode builds a key of the form "<TYPE>#<value>".
func Encode(entityType domain.EntityType, id string) string {
	return string(entityType) + separator + id
}

// Decode splits a well-formed key into its type tag and value. A key
// without the separator is a legacy record: the raw string comes back
// as the id with an unknown type, and callers must keep accepting it.
func Decode(key string) (domain.EntityType, string) {
	tag, id, ok := strings.Cut(key, separator)
	if !ok {
		return domain.EntityTypeUnknown, key
	}
	return domain.EntityType(tag), id
}
