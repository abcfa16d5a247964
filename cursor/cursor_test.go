package cursor_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stelladb/stellator/cursor"
)

func TestIsSpecialFloat(t *testing.T) {
	assert.True(t, cursor.IsSpecialFloat(math.NaN()))
	assert.True(t, cursor.IsSpecialFloat(math.Inf(1)))
	assert.True(t, cursor.IsSpecialFloat(math.Inf(-1)))
	assert.False(t, cursor.IsSpecialFloat(1.5))
}

func TestDeltaColumnNames(t *testing.T) {
	assert.Equal(t, "__d_action", cursor.DeltaColumns.Action)
	assert.Equal(t, "__d_time", cursor.DeltaColumns.Time)
	assert.Equal(t, "__d_object", cursor.DeltaColumns.Object)
	assert.Equal(t, "__d_user", cursor.DeltaColumns.User)
}
