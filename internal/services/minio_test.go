package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "images/5f1c.json", ObjectName("5f1c"))
	assert.Equal(t, "-Juqip8bcmF7u3z97fbe", ImageID(ObjectName("-Juqip8bcmF7u3z97fbe")))
	assert.Equal(t, "abc", ImageID("abc"))
}
