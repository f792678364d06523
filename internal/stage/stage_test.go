package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress_String(t *testing.T) {
	assert.Equal(t, "excite[2]", Address{Design: "excite", Progression: 2}.String())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
