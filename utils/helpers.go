package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// RemoveQueryParams strips everything from the first '?' on.
func RemoveQueryParams(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// HashURL returns the hex SHA-256 of a canonical URL. It is the upsert key
// of a lecture, so it must only ever be fed the query-stripped URL.
func HashURL(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// PageURL builds the listing URL for a page number.
func PageURL(searchURL string, page int) string {
	sep := "?"
	if strings.Contains(searchURL, "?") {
		sep = "&"
	}
	return searchURL + sep + "page_number=" + strconv.Itoa(page)
}
