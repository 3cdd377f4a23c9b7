package cache

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/jinzhu/inflection"
)

// KeySeparator delimits the namespace prefix from the logical key name.
const KeySeparator = ":"

// maxKeyLen bounds the physical key length sent to the store. Logical keys
// built from query arguments can grow unboundedly; anything longer is
// replaced by a stable digest so the store never sees megabyte keys.
const maxKeyLen = 200

// Keyspace maps logical key names onto the physical keys stored in the
// backing service. All keys produced by one Keyspace share the configured
// namespace prefix, isolating this application from others on the same store.
type Keyspace struct {
	prefix string
}

// NewKeyspace returns a Keyspace using the given namespace prefix.
// An empty prefix disables namespacing.
func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: strings.TrimSpace(prefix)}
}

// Prefix returns the configured namespace prefix.
func (k Keyspace) Prefix() string { return k.prefix }

// Key builds the physical key for a logical name: "{prefix}:{name}".
// Over-long names are collapsed into an xxhash digest to keep keys bounded.
func (k Keyspace) Key(name string) string {
	full := name
	if k.prefix != "" {
		full = k.prefix + KeySeparator + name
	}
	if len(full) <= maxKeyLen {
		return full
	}
	digest := fmt.Sprintf("x%016x", xxhash.Sum64String(name))
	if k.prefix == "" {
		return digest
	}
	return k.prefix + KeySeparator + digest
}

// Field normalizes a hash field name. Field lookups are case-insensitive by
// convention, so every field is lower-cased before store access.
func (k Keyspace) Field(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}

// Pattern builds a store-native glob pattern scoped to this namespace.
func (k Keyspace) Pattern(pattern string) string {
	if pattern == "" {
		pattern = "*"
	}
	if k.prefix == "" {
		return pattern
	}
	return k.prefix + KeySeparator + pattern
}

// Contains reports whether a physical key belongs to this namespace.
func (k Keyspace) Contains(key string) bool {
	if k.prefix == "" {
		return true
	}
	return strings.HasPrefix(key, k.prefix+KeySeparator)
}

// CollectionKey derives the logical key for a whole-collection entry from an
// entity name, following the portal convention: "Student" -> "StudentData".
func CollectionKey(entity string) string {
	return entity + "Data"
}

// HashKey derives the logical key of the per-entity hash record from an
// entity name: "CourseRegistration" -> "course_registrations". The hash
// record holds one field per entity identifier for partial reads.
func HashKey(entity string) string {
	return inflection.Plural(toSnake(entity))
}

// toSnake converts an entity name to snake_case using ASCII rules. Keys built
// from reflected type names can carry punctuation the store rejects, so
// anything that is not a letter or digit becomes an underscore.
func toSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/2)

	runes := []rune(s)
	lastUnderscore := false
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && !lastUnderscore {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.Trim(b.String(), "_")
}
