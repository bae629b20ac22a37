package helpers

import (
	"testing"

	"github.com/xiaot623/gogo/streamchat/internal/repository"
)

// NewTestSQLiteStore opens an in-memory conversation store closed at test end.
func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
