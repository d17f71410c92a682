// Package mock provides a test double for ai.Embedder.
//
// The mock lets tests run without an embedding service and gives controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Default behavior: deterministic unit vectors derived from the text hash
//	embedder := mock.NewMockEmbedder()
//	vector, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("model unavailable")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
