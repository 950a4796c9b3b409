// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postpilot-ai/postpilot/internal/store"
	"github.com/postpilot-ai/postpilot/internal/store/sqlite"
)

// testStore opens a fresh SQLite store in a temp directory.
func testStore(t *testing.T, name string) *sqlite.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "postpilot-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := sqlite.Open(filepath.Join(dir, name+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedSession inserts a session so foreign keys on child rows hold.
func seedSession(t *testing.T, s *sqlite.Store, id string) {
	t.Helper()
	err := s.CreateSession(context.Background(), &store.Session{
		ID:        id,
		Stage:     "no_plan",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
}
