// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndGetSecretRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	p, err := NewInsecureProvider(path, nil)
	require.NoError(t, err)

	require.NoError(t, p.StoreSecret("mqtt-bus", map[string]string{"username": "svc", "password": "hunter2"}))

	got, err := p.GetSecret("mqtt-bus")
	require.NoError(t, err)
	assert.Equal(t, "svc", got["username"])
	assert.Equal(t, "hunter2", got["password"])
}

func TestGetSecretUnknownNameIsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	p, err := NewInsecureProvider(path, nil)
	require.NoError(t, err)

	_, err = p.GetSecret("does-not-exist")
	assert.Error(t, err)
}

func TestStoreSecretInvalidatesCachedClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	invalidated := ""
	p, err := NewInsecureProvider(path, func(name string) { invalidated = name })
	require.NoError(t, err)

	require.NoError(t, p.StoreSecret("mqtt-bus", map[string]string{"username": "a"}))
	assert.Empty(t, invalidated, "first store of a new name should not invalidate")

	require.NoError(t, p.StoreSecret("mqtt-bus", map[string]string{"username": "b"}))
	assert.Equal(t, "mqtt-bus", invalidated)
}

func TestLoadPersistedSecretsFromExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	p1, err := NewInsecureProvider(path, nil)
	require.NoError(t, err)
	require.NoError(t, p1.StoreSecret("db", map[string]string{"token": "xyz"}))

	p2, err := NewInsecureProvider(path, nil)
	require.NoError(t, err)
	got, err := p2.GetSecret("db")
	require.NoError(t, err)
	assert.Equal(t, "xyz", got["token"])
}
