package testutil

// FixedTokenGenerator returns the same run token every time, so a
// scenario's trace and checkpoints are byte-identical across runs.
//
// Unlike federate.FixedGenerator, which hands out a finite sequence,
// this generator never exhausts; use it when every run in a test should
// share one token.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a generator for the given token. An
// empty token defaults to "test-run-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
