package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	assert.Equal(t,
		"u:p@tcp(db:3306)/brewbuds?parseTime=True&charset=utf8mb4&loc=UTC",
		withDefaults("u:p@tcp(db:3306)/brewbuds"))
	assert.Equal(t,
		"u:p@tcp(db:3306)/brewbuds?charset=utf8&parseTime=True&loc=UTC",
		withDefaults("u:p@tcp(db:3306)/brewbuds?charset=utf8"))
	full := "u:p@tcp(db:3306)/brewbuds?parseTime=true&charset=utf8mb4&loc=Local"
	assert.Equal(t, full, withDefaults(full))
}
