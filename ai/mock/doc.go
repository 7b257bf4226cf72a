// Package mock provides test doubles for the ai interfaces.
//
// Tests across the module use these to exercise ingestion, retrieval and
// chat without a model server.
//
// # Usage
//
//	provider := mock.NewMockProvider()
//	provider.GetMockGenerator().GenerateFunc = func(ctx context.Context, prompt string) (*ai.Generation, error) {
//	    return &ai.Generation{Text: "scripted"}, nil
//	}
//
//	// Check call counts
//	count := provider.GetMockEmbedder().CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: bag-of-words vectors, so texts sharing words score as similar
//   - MockGenerator: echoes the last line of the prompt
//   - MockProvider: aggregates both
package mock
