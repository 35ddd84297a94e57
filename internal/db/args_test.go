package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk/internal/db"
	"github.com/examdesk/examdesk/internal/db/dbtest"
)

func TestArgsPlaceholders(t *testing.T) {
	var args db.Args
	assert.Equal(t, "$1", args.Add("a"))
	assert.Equal(t, "$2", args.Add(2))
	assert.Equal(t, `LIKE $3 ESCAPE '\'`, args.Contains(`50%_A\b`))
	assert.Equal(t, `%50\%\_a\\b%`, args[2])
}

func TestContainsMatchesWildcardsLiterally(t *testing.T) {
	dbh := dbtest.New(t)
	for i, name := range []string{"Grade 9", "100% Maths", "form_one"} {
		_, err := dbh.Exec(`INSERT INTO class_levels (id,name,ordinal,created_at) VALUES ($1,$2,$3,1)`, name, name, i)
		require.NoError(t, err)
	}
	find := func(q string) []string {
		t.Helper()
		var args db.Args
		var out []string
		require.NoError(t, dbh.Select(&out, `SELECT name FROM class_levels WHERE LOWER(name) `+args.Contains(q)+` ORDER BY name`, args...))
		return out
	}

	assert.Equal(t, []string{"100% Maths"}, find("%"))
	assert.Equal(t, []string{"form_one"}, find("_"))
	assert.Equal(t, []string{"Grade 9"}, find("GRADE"))
	assert.Empty(t, find("form one"))
}
