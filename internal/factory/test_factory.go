package factory

import (
	"time"

	"github.com/mcoot/chesschain-go/internal/dependencies/mocks"
	"github.com/mcoot/chesschain-go/internal/services/signature"
	"github.com/mcoot/chesschain-go/internal/storage/memory"
	"github.com/mcoot/chesschain-go/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock   *mocks.MockClock
	MockRandom  *mocks.MockRandom
	MemoryStore *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(Config{})
}

// NewTestAppWithConfig is NewTestApp with explicit policy and timing settings.
// Storage is always in memory.
func NewTestAppWithConfig(cfg Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	logger := cfg.Logger
	if logger == nil {
		logger = testutil.NopLogger()
	}
	app := newWithDependencies(store, mockClock, mockRandom, signature.NewEd25519Verifier(), withDefaults(cfg), logger)

	return &TestApp{
		App:         app,
		MockClock:   mockClock,
		MockRandom:  mockRandom,
		MemoryStore: store,
	}
}
