// Package charset holds the numeric-id <-> name mapping for the
// character sets and collations this front end advertises, plus each
// charset's default collation. It is a deliberately small slice of the
// full MySQL collation table (https://dev.mysql.com/doc/internals/en/charsets.html),
// covering the charsets a modern client is actually likely to negotiate.
package charset

// Collation is a single row of the MySQL collation table: a numeric id
// (what travels on the wire), its name, and the charset it belongs to.
type Collation struct {
	ID      uint8
	Name    string
	Charset string
}

// Well-known collation ids. utf8mb4_general_ci is this server's default.
const (
	CollationUTF8GeneralCI     uint8 = 33
	CollationBinary            uint8 = 63
	CollationUTF8MB4General    uint8 = 45
	CollationUTF8MB4Unicode    uint8 = 224
	CollationLatin1Swedish     uint8 = 8
	CollationUTF8MB4Bin        uint8 = 46

	DefaultCollation = CollationUTF8MB4General
)

var collations = []Collation{
	{ID: CollationLatin1Swedish, Name: "latin1_swedish_ci", Charset: "latin1"},
	{ID: CollationUTF8GeneralCI, Name: "utf8_general_ci", Charset: "utf8"},
	{ID: CollationBinary, Name: "binary", Charset: "binary"},
	{ID: CollationUTF8MB4General, Name: "utf8mb4_general_ci", Charset: "utf8mb4"},
	{ID: CollationUTF8MB4Bin, Name: "utf8mb4_bin", Charset: "utf8mb4"},
	{ID: CollationUTF8MB4Unicode, Name: "utf8mb4_unicode_ci", Charset: "utf8mb4"},
}

var (
	byID           = map[uint8]Collation{}
	byName         = map[string]Collation{}
	defaultByCharset = map[string]Collation{}
)

func init() {
	for _, c := range collations {
		byID[c.ID] = c
		byName[c.Name] = c
		if _, ok := defaultByCharset[c.Charset]; !ok {
			defaultByCharset[c.Charset] = c
		}
	}
	// The first collation listed for a charset becomes its default;
	// the defaults below are then set explicitly so they do not depend
	// on the order of the collations slice.
	defaultByCharset["utf8mb4"] = byID[CollationUTF8MB4General]
	defaultByCharset["utf8"] = byID[CollationUTF8GeneralCI]
	defaultByCharset["latin1"] = byID[CollationLatin1Swedish]
	defaultByCharset["binary"] = byID[CollationBinary]
}

// ByID returns the collation registered under id.
func ByID(id uint8) (Collation, bool) {
	c, ok := byID[id]
	return c, ok
}

// ByName returns the collation registered under the given collation
// name (e.g. "utf8mb4_general_ci").
func ByName(name string) (Collation, bool) {
	c, ok := byName[name]
	return c, ok
}

// DefaultCollationForCharset returns the default collation id for a
// charset name (e.g. "utf8mb4" -> utf8mb4_general_ci), used by
// `SET NAMES charset` when no explicit COLLATE clause is given.
func DefaultCollationForCharset(charsetName string) (Collation, bool) {
	c, ok := defaultByCharset[charsetName]
	return c, ok
}
