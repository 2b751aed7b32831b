package sweep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredFamilies(t *testing.T) {
	assert.Equal(t, []string{"hill", "linear", "simple", "twostate"}, FamilyTags())
}

func TestFamilyShapes(t *testing.T) {
	for _, tag := range FamilyTags() {
		t.Run(tag, func(t *testing.T) {
			family, ok := LookupFamily(tag)
			require.True(t, ok)
			assert.Equal(t, tag, family.Tag)
			assert.Equal(t, len(family.Base), len(family.Labels),
				"one label per base parameter")
			require.NotNil(t, family.Build)
		})
	}
}

func TestFamilyBuildersAcceptBaseArity(t *testing.T) {
	for _, tag := range FamilyTags() {
		t.Run(tag, func(t *testing.T) {
			family, _ := LookupFamily(tag)

			// Builders receive linear-space values; exponentiate the base.
			params := make([]float64, len(family.Base))
			for i, b := range family.Base {
				params[i] = math.Pow(10, b)
			}

			m, err := family.Build(params)
			require.NoError(t, err)
			assert.Equal(t, tag, m.Family)
			assert.NotEmpty(t, m.RateConstants)
			assert.NotEmpty(t, m.Feedback)

			// Every family carries at least one perturbed feedback term.
			perturbed := false
			for _, f := range m.Feedback {
				if f.Perturbed {
					perturbed = true
				}
			}
			assert.True(t, perturbed)
		})
	}
}

func TestFamilyBuildersRejectWrongArity(t *testing.T) {
	for _, tag := range FamilyTags() {
		t.Run(tag, func(t *testing.T) {
			family, _ := LookupFamily(tag)
			_, err := family.Build(make([]float64, len(family.Base)+1))
			require.Error(t, err)
		})
	}
}

func TestLookupFamilyUnknown(t *testing.T) {
	_, ok := LookupFamily("exotic")
	assert.False(t, ok)
}

func TestRegisterFamilyDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterFamily(Family{Tag: "simple"})
	})
}
