package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	t.Run("Should be stable across map ordering", func(t *testing.T) {
		a := map[string]any{"b": "2", "a": []any{"x", 1.0}, "c": map[string]string{"z": "1", "y": "2"}}
		b := map[string]any{"c": map[string]string{"y": "2", "z": "1"}, "a": []any{"x", 1.0}, "b": "2"}
		assert.Equal(t, Fingerprint("tag", a), Fingerprint("tag", b))
	})

	t.Run("Should separate parts so concatenation cannot collide", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
	})

	t.Run("Should preserve slice order", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint([]string{"a", "b"}), Fingerprint([]string{"b", "a"}))
	})
}

func TestStableJSONBytes(t *testing.T) {
	got := string(StableJSONBytes(map[string]any{"b": true, "a": nil}))
	assert.Equal(t, `{"a":null,"b":true}`, got)
}
