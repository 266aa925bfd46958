// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018 IOTech Ltd
// Copyright (c) 2019 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/common"
)

const sampleYAML = `
Service:
  Host: localhost
  Port: 49990
Device:
  DataTransform: true
  MaxCmdOps: 128
Writable:
  LogLevel: INFO
MessageBus:
  Type: mqtt
  Host: localhost
  Port: 1883
Driver:
  Protocol: tcp
  Port: "1883"
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, common.ConfigFileName), []byte(sampleYAML), 0644))
	return dir
}

func TestLoadDriverConfigFromFile(t *testing.T) {
	dir := writeSampleConfig(t)

	config, err := loadConfigFromFile(filepath.Join(dir, common.ConfigFileName))
	require.NoError(t, err)

	assert.Equal(t, "tcp", config.Driver["Protocol"])
	assert.Equal(t, "1883", config.Driver["Port"])
	assert.True(t, config.Device.DataTransform)
}

func TestApplyEnvOverrideWritableLogLevel(t *testing.T) {
	dir := writeSampleConfig(t)
	config, err := loadConfigFromFile(filepath.Join(dir, common.ConfigFileName))
	require.NoError(t, err)

	os.Setenv("WRITABLE_LOGLEVEL", "DEBUG")
	defer os.Unsetenv("WRITABLE_LOGLEVEL")

	ApplyEnvOverrides(config, os.Environ())
	assert.Equal(t, "DEBUG", config.Writable.LogLevel)
}

func TestApplyOverrideDriverSubtree(t *testing.T) {
	config := &common.Config{}
	ApplyOverride(config, "Driver/Host", "192.168.1.5")
	assert.Equal(t, "192.168.1.5", config.Driver["Host"])
	assert.True(t, IsWritableKey("Writable/LogLevel"))
	assert.False(t, IsWritableKey("Device/MaxCmdOps"))
}
