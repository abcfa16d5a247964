package driver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelladb/stellator/driver"
)

func TestParseDSNPostgres(t *testing.T) {
	kind, params, err := driver.ParseDSN("pgsql:host=db;dbname=app;user=app")
	require.NoError(t, err)
	assert.Equal(t, driver.KindPostgres, kind)
	assert.Equal(t, "db", params["host"])
	assert.Equal(t, "app", params["dbname"])
}

func TestParseDSNSQLite(t *testing.T) {
	kind, params, err := driver.ParseDSN("sqlite:dbname=/tmp/x.db;mode=rwc;journal=wal;cache=shared;threading=serialized")
	require.NoError(t, err)
	assert.Equal(t, driver.KindSQLite, kind)
	assert.Equal(t, "/tmp/x.db", params["dbname"])
	assert.Equal(t, "serialized", params["threading"])
}

func TestParseDSNMalformed(t *testing.T) {
	_, _, err := driver.ParseDSN("nocolon")
	assert.Error(t, err)
}

func TestRegistryOpenUnknownKind(t *testing.T) {
	r := driver.NewRegistry()
	_, _, err := r.Open("mysql:dbname=x")
	assert.Error(t, err)
}
