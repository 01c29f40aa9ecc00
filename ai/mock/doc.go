// Package mock provides test doubles for the ai package interfaces.
//
// MockEmbedder returns deterministic vectors derived from the input text,
// counts calls and can be told to fail for specific texts. MockWarmer adds
// a scripted liveness probe and wake-up.
//
//	embedder := mock.NewMockEmbedder()
//	embedder.FailOn("bad input", errors.New("boom"))
//	vec, err := embedder.EmbedText(ctx, "hello")
//	assert.Equal(t, 1, embedder.CallCount())
package mock
