package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixer(t *testing.T) {
	p := prefixer("brewbuds:")
	assert.Equal(t, "brewbuds:ranking:beans", p.key("ranking:beans"))
	assert.Equal(t, []string{"brewbuds:a", "brewbuds:b"}, p.keys([]string{"a", "b"}))

	none := prefixer("")
	in := []string{"session:x"}
	assert.Equal(t, in, none.keys(in))
	assert.Equal(t, "session:x", none.key("session:x"))
}

func TestMembers(t *testing.T) {
	assert.Equal(t, []interface{}{"1", "2"}, members([]string{"1", "2"}))
	assert.Empty(t, members(nil))
}
