package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContext_RetrievalFingerprint(t *testing.T) {
	t.Run("Should ignore order, case and duplicates of conditions", func(t *testing.T) {
		a := &UserContext{UserID: "u1", ExperienceLevel: "Beginner", ActiveConditions: []string{"Shoulder", "knee"}}
		b := &UserContext{UserID: "u2", ExperienceLevel: LevelBeginner, ActiveConditions: []string{"knee", " shoulder", "knee"}}
		assert.Equal(t, a.RetrievalFingerprint(), b.RetrievalFingerprint())
	})

	t.Run("Should differ when conditions differ", func(t *testing.T) {
		a := &UserContext{ExperienceLevel: LevelAdvanced}
		b := &UserContext{ExperienceLevel: LevelAdvanced, ActiveConditions: []string{"lower_back"}}
		assert.NotEqual(t, a.RetrievalFingerprint(), b.RetrievalFingerprint())
	})

	t.Run("Should be empty for a nil context", func(t *testing.T) {
		var u *UserContext
		assert.Empty(t, u.RetrievalFingerprint())
		assert.Nil(t, u.Conditions())
		assert.Empty(t, u.Level())
	})
}
