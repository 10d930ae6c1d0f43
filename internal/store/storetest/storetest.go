// Package storetest opens isolated in-memory stores for tests.
package storetest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/abhisek/dalil/internal/store"
)

// Open returns a fresh in-memory store named after the running test and
// closes it on cleanup.
func Open(t testing.TB) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
