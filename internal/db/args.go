package db

import (
	"strconv"
	"strings"
)

// Args collects positional query arguments and hands out $N placeholders,
// which both pgx and modernc sqlite accept.
type Args []any

// Add appends v and returns its placeholder.
func (a *Args) Add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains returns a LIKE clause matching s as a lowercase substring. % and _
// in s match literally. Compare against LOWER(column).
func (a *Args) Contains(s string) string {
	return `LIKE ` + a.Add("%"+likeEscaper.Replace(strings.ToLower(s))+"%") + ` ESCAPE '\'`
}

// Page clamps limit/offset: limit defaults to def and is capped at max.
func Page(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
