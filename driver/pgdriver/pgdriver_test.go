package pgdriver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stelladb/stellator/driver/pgdriver"
)

func TestRebindDollarStyle(t *testing.T) {
	d := pgdriver.New()
	got := d.Rebind(`SELECT * FROM "users" WHERE "id" = ?1 AND "name" = ?2`)
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" = $1 AND "name" = $2`, got)
}
