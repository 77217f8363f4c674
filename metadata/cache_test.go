// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package metadata_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-skills/metadata"
	"github.com/stacklok/toolhive-skills/metadata/mocks"
)

func TestCachingClient_CachesFoundRecords(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClient(ctrl)
	want := metadata.SkillMetadata{Name: "a", Version: "1.0.0", BundleID: "bundle-a", Dependencies: []string{"b"}}
	inner.EXPECT().Lookup(gomock.Any(), "a").Return(want, true, nil).Times(1)

	client := metadata.NewCachingClient(inner, 8, time.Minute)

	for range 3 {
		got, found, err := client.Lookup(t.Context(), "a")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, got)
	}
}

func TestCachingClient_ReturnsIndependentCopies(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClient(ctrl)
	inner.EXPECT().Lookup(gomock.Any(), "a").
		Return(metadata.SkillMetadata{Name: "a", Dependencies: []string{"b"}}, true, nil).Times(1)

	client := metadata.NewCachingClient(inner, 8, time.Minute)

	first, _, err := client.Lookup(t.Context(), "a")
	require.NoError(t, err)
	first.Dependencies[0] = "mutated"

	second, _, err := client.Lookup(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, second.Dependencies)
}

func TestCachingClient_DoesNotCacheMissesOrErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClient(ctrl)
	boom := errors.New("registry unavailable")
	gomock.InOrder(
		inner.EXPECT().Lookup(gomock.Any(), "x").Return(metadata.SkillMetadata{}, false, nil),
		inner.EXPECT().Lookup(gomock.Any(), "x").Return(metadata.SkillMetadata{}, false, boom),
		inner.EXPECT().Lookup(gomock.Any(), "x").Return(metadata.SkillMetadata{Name: "x"}, true, nil),
	)

	client := metadata.NewCachingClient(inner, 0, 0)

	_, found, err := client.Lookup(t.Context(), "x")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = client.Lookup(t.Context(), "x")
	assert.ErrorIs(t, err, boom)

	_, found, err = client.Lookup(t.Context(), "x")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCachingClient_Purge(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClient(ctrl)
	inner.EXPECT().Lookup(gomock.Any(), "a").Return(metadata.SkillMetadata{Name: "a"}, true, nil).Times(2)

	client := metadata.NewCachingClient(inner, 8, time.Minute)
	_, _, err := client.Lookup(t.Context(), "a")
	require.NoError(t, err)
	client.Purge()
	_, _, err = client.Lookup(t.Context(), "a")
	require.NoError(t, err)
}

func TestNewCachingClient_NilPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { metadata.NewCachingClient(nil, 1, time.Second) })
}
