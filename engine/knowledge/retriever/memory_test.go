package retriever_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftwise/coachgate/engine/knowledge/retriever"
)

func TestMemoryBackend_Search(t *testing.T) {
	b := retriever.NewMemoryBackend(map[string][]retriever.Document{
		"injury_prevention": {
			{Text: "Rotator cuff work protects the shoulder.", ContentType: "protocol"},
			{Text: "Knee pain responds to load management.", ContentType: "guidance"},
			{Text: "Shoulder pain during pressing needs a lighter load.", ContentType: "guidance"},
		},
	})
	ctx := context.Background()

	t.Run("Should rank documents by query term overlap", func(t *testing.T) {
		chunks, err := b.Search(ctx, retriever.Query{Namespace: "injury_prevention", Text: "shoulder pain", TopK: 5})
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "Shoulder pain during pressing needs a lighter load.", chunks[0].Text)
		assert.InDelta(t, 1.0, chunks[0].Score, 1e-9)
		assert.InDelta(t, 0.5, chunks[1].Score, 1e-9)
		assert.Equal(t, "injury_prevention", chunks[1].Namespace)
	})

	t.Run("Should count hints as query terms", func(t *testing.T) {
		chunks, err := b.Search(ctx, retriever.Query{Namespace: "injury_prevention", Hints: []string{"knee"}, TopK: 5})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Contains(t, chunks[0].Text, "Knee")
	})

	t.Run("Should truncate to top k", func(t *testing.T) {
		chunks, err := b.Search(ctx, retriever.Query{Namespace: "injury_prevention", Text: "shoulder pain", TopK: 1})
		require.NoError(t, err)
		assert.Len(t, chunks, 1)
	})

	t.Run("Should return nothing for an unknown namespace or empty query", func(t *testing.T) {
		chunks, err := b.Search(ctx, retriever.Query{Namespace: "nope", Text: "shoulder"})
		require.NoError(t, err)
		assert.Empty(t, chunks)
		chunks, err = b.Search(ctx, retriever.Query{Namespace: "injury_prevention", Text: "the and"})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Should fail on a cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := b.Search(cctx, retriever.Query{Namespace: "injury_prevention", Text: "shoulder"})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestDefaultCorpus(t *testing.T) {
	t.Run("Should answer a shoulder query in the rehab namespace", func(t *testing.T) {
		b := retriever.NewMemoryBackend(retriever.DefaultCorpus())
		chunks, err := b.Search(context.Background(), retriever.Query{
			Namespace: "injury_rehab_protocols",
			Text:      "shoulder",
			TopK:      3,
		})
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.Contains(t, chunks[0].Text, "shoulder")
	})
}
