package namecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccepts(t *testing.T) {
	for _, name := range []string{"world", "a", "frame-1", "a1-b2"} {
		assert.Nil(t, Validate(name), name)
	}
}

func TestValidateRejects(t *testing.T) {
	for _, name := range []string{"Hello", "", "a_b", "a b", "a.b"} {
		werr := Validate(name)
		assert.NotNil(t, werr, name)
	}
}
