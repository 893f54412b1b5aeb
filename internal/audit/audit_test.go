// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestRecordAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	trail, err := NewTrail(path)
	require.NoError(t, err)
	defer trail.Close()

	require.NoError(t, trail.RecordSignIn("maya", nil))
	require.NoError(t, trail.RecordRefresh(errors.New("refresh rejected")))
	require.NoError(t, trail.RecordTenantSwitch("acme", "globex"))

	events := readEvents(t, path)
	require.Len(t, events, 3)

	assert.Equal(t, EventSignIn, events[0].EventType)
	assert.Equal(t, "maya", events[0].Username)
	assert.True(t, events[0].Success)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Equal(t, EventRefresh, events[1].EventType)
	assert.False(t, events[1].Success)
	assert.Equal(t, "refresh rejected", events[1].Error)

	assert.Equal(t, EventTenantSwitch, events[2].EventType)
	assert.Equal(t, "acme", events[2].Metadata["from"])
	assert.Equal(t, "globex", events[2].Metadata["to"])
}

func TestDisabledTrailDropsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	trail, err := NewTrail(path)
	require.NoError(t, err)
	defer trail.Close()

	trail.SetEnabled(false)
	require.NoError(t, trail.RecordSignOut("maya"))

	assert.Empty(t, readEvents(t, path))
}

func TestRotationKeepsOneGeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	trail, err := NewTrail(path)
	require.NoError(t, err)
	defer trail.Close()
	trail.maxSize = 64

	for i := 0; i < 10; i++ {
		require.NoError(t, trail.RecordSignOut("maya"))
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)

	// The live file keeps accepting events after rotation.
	require.NoError(t, trail.RecordSignOut("maya"))
}

func TestTrailCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	trail, err := NewTrail(path)
	require.NoError(t, err)
	require.NoError(t, trail.Close())

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}
