package sqlitedriver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stelladb/stellator/driver/sqlitedriver"
)

func TestRebindQuestionStyle(t *testing.T) {
	d := sqlitedriver.New()
	got := d.Rebind(`SELECT * FROM "users" WHERE "id" = ?1 AND "name" = ?2`)
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" = ? AND "name" = ?`, got)
}

func TestSupportsNotificationsFalse(t *testing.T) {
	d := sqlitedriver.New()
	assert.False(t, d.SupportsNotifications())
}
