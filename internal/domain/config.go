package domain

// KeyPrefix namespaces every key promptdex writes to a shared Redis/Valkey.
const KeyPrefix = "promptdex:"

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	ContextWindowTokens int
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the defaults for OpenAI text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:               "text-embedding-3-small",
		Dimensions:          1536,
		ContextWindowTokens: 8191,
	}
}
