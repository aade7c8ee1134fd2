package match

import (
	"testing"

	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	cases := map[string]string{
		"guji":    "%guji%",
		"100%":    "%100!%%",
		"cold_br": "%cold!_br%",
		"wow!":    "%wow!!%",
		"":        "%%",
	}
	for in, want := range cases {
		assert.Equal(t, want, Contains(in), in)
	}
}

func TestContains_MatchesLiterally(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateBean(t, db, "Guji")
	testutil.CreateBean(t, db, "Blend 100% Arabica")
	testutil.CreateBean(t, db, "cold_brew")
	testutil.CreateBean(t, db, "coldXbrew")

	names := func(term string) []string {
		var out []string
		require.NoError(t, db.Model(&model.Bean{}).Where("name"+Like, Contains(term)).Order("id").Pluck("name", &out).Error)
		return out
	}
	assert.Equal(t, []string{"Blend 100% Arabica"}, names("%"))
	assert.Equal(t, []string{"cold_brew"}, names("d_b"))
	assert.Equal(t, []string{"Guji"}, names("uji"))
}
