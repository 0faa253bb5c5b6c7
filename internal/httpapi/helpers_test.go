package httpapi

import (
	"testing"

	"specd/internal/manager"
	"specd/internal/store"
)

func newManager(t *testing.T) *manager.Manager {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return manager.New(st)
}
