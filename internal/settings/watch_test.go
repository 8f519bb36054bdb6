// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileBackend_WatchReportsExternalWrite(t *testing.T) {
	backend := NewFileBackend(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	require.NoError(t, backend.Watch(ctx, StorageKey, func() { changed <- struct{}{} }))

	other := NewFileBackend(backend.Dir)
	require.NoError(t, other.Write(StorageKey, []byte(`{"version":2,"state":{}}`)))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification after external write")
	}
}
