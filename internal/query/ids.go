package query

import (
	"strconv"
	"strings"
)

// ParseIDs reads id lists as clients send them: comma-joined, repeated, or
// both. Malformed and non-positive entries are dropped silently; duplicates
// keep their first position.
func ParseIDs(values ...string) []int64 {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			ids = append(ids, id)
		}
	}
	return dedupe(ids)
}
