// Package opreg is the extended-operator-token lookup of spec.md
// §2.1/§6: it maps a `$`-prefixed key to an operator [Code] so the
// parser's dispatch tables (spec.md §4.4) can switch on an enum instead
// of repeated string comparisons, and maps a $type string alias to its
// BSON type code (spec.md §4.7).
//
// The canonical operator name list is cross-checked against the
// constants in maxbolgarin-mongox's operators.go (a single reference
// file, not a fetchable module) against spec.md's own dispatch table.
package opreg

import (
	"slices"
	"strings"

	"github.com/docexpr/matchexpr/bsonval"
)

// Code is the extended operator code a `$`-prefixed key resolves to.
type Code uint8

// Operator codes, spec.md §6.
const (
	NONE Code = iota
	LT
	LTE
	GT
	GTE
	NE
	EQUALITY
	IN
	NIN
	SIZE
	EXISTS
	TYPE
	MOD
	OPTIONS
	REGEX
	ELEM_MATCH
	ALL
	WITHIN
	GEO_INTERSECTS
	NOT
	WHERE
	NEAR
	NEAR_SPHERE
	GEO_NEAR
	MAX_DISTANCE
	MIN_DISTANCE
	AND
	OR
	NOR
	ATOMIC
	ISOLATED
	COMMENT
	TEXT
)

var table = map[string]Code{
	"$lt":            LT,
	"$lte":           LTE,
	"$gt":            GT,
	"$gte":           GTE,
	"$ne":            NE,
	"$eq":            EQUALITY,
	"$in":            IN,
	"$nin":           NIN,
	"$size":          SIZE,
	"$exists":        EXISTS,
	"$type":          TYPE,
	"$mod":           MOD,
	"$options":       OPTIONS,
	"$regex":         REGEX,
	"$elemMatch":     ELEM_MATCH,
	"$all":           ALL,
	"$within":        WITHIN,
	"$geoWithin":     WITHIN,
	"$geoIntersects": GEO_INTERSECTS,
	"$where":         WHERE,
	"$near":          NEAR,
	"$nearSphere":    NEAR_SPHERE,
	"$geoNear":       GEO_NEAR,
	"$maxDistance":   MAX_DISTANCE,
	"$minDistance":   MIN_DISTANCE,
	"$and":           AND,
	"$or":            OR,
	"$nor":           NOR,
	"$atomic":        ATOMIC,
	"$isolated":      ISOLATED,
	"$comment":       COMMENT,
	"$text":          TEXT,
}

var sortedKeys = func() []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}()

// Lookup resolves a `$`-prefixed key to its operator [Code]. It returns
// (NONE, false) for any key the registry does not recognize.
func Lookup(key string) (Code, bool) {
	c, ok := table[key]
	return c, ok
}

// GeoKeys reports whether key is one of the auxiliary geo-query keys
// (spec.md §4.3's geo short-circuit: $near, $nearSphere, $geoNear,
// $maxDistance, $minDistance) that force the entire enclosing
// sub-document to be routed to the geo callback as one unit.
func GeoKeys(key string) bool {
	switch key {
	case "$near", "$nearSphere", "$geoNear", "$maxDistance", "$minDistance":
		return true
	default:
		return false
	}
}

// Suggest returns the known operator keys within edit distance 2 of key,
// sorted lexicographically, for enriching an unknown-operator error
// message. Returns nil if nothing is close enough to be a plausible typo.
func Suggest(key string) []string {
	var out []string
	for _, k := range sortedKeys {
		if levenshtein(key, k) <= 2 {
			out = append(out, k)
		}
	}
	return out
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// typeAliases maps a $type string argument to its BSON type code,
// spec.md §4.7.
var typeAliases = map[string]bsonval.Type{
	"double":      bsonval.TypeDouble,
	"string":      bsonval.TypeString,
	"object":      bsonval.TypeDocument,
	"array":       bsonval.TypeArray,
	"binData":     bsonval.TypeBinary,
	"objectId":    bsonval.TypeObjectID,
	"bool":        bsonval.TypeBool,
	"date":        bsonval.TypeDate,
	"null":        bsonval.TypeNull,
	"regex":       bsonval.TypeRegex,
	"int":         bsonval.TypeInt32,
	"long":        bsonval.TypeInt64,
	"timestamp":   bsonval.TypeTimestamp,
	"minKey":      bsonval.TypeMinKey,
	"maxKey":      bsonval.TypeMaxKey,
	"number":      bsonval.TypeDouble,
	"undefined":   bsonval.TypeUndefined,
}

// TypeAlias resolves a $type string alias to its BSON type code.
func TypeAlias(s string) (bsonval.Type, bool) {
	t, ok := typeAliases[s]
	return t, ok
}

// IsReserved reports whether field starts with the operator sigil.
func IsReserved(field string) bool {
	return strings.HasPrefix(field, "$")
}
