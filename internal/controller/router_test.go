// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/secret"
	"github.com/openedge-platform/device-service-core/internal/telemetry"
)

func testController(t *testing.T) *Controller {
	t.Helper()
	provider, err := secret.NewInsecureProvider(filepath.Join(t.TempDir(), "secrets.json"), nil)
	require.NoError(t, err)

	return &Controller{
		Config:     &common.Config{},
		Metrics:    telemetry.NewRegistry(),
		Secrets:    provider,
		Logger:     logging.NewClient("device-test", logging.INFO),
		ServiceKey: "device-test",
	}
}

func TestPingReturnsServiceName(t *testing.T) {
	c := testController(t)
	req := httptest.NewRequest(http.MethodGet, common.APIPingRoute, nil)
	rr := httptest.NewRecorder()

	c.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "device-test")
}

func TestPostSecretStoresAndReturnsCreated(t *testing.T) {
	c := testController(t)
	body := bytes.NewBufferString(`{"secretName":"mqtt-bus","secretData":{"username":"svc"}}`)
	req := httptest.NewRequest(http.MethodPost, common.APISecretRoute, body)
	rr := httptest.NewRecorder()

	c.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	got, err := c.Secrets.GetSecret("mqtt-bus")
	require.NoError(t, err)
	assert.Equal(t, "svc", got["username"])
}

func TestTriggerDiscoveryWithoutCapabilityReturnsNotImplemented(t *testing.T) {
	c := testController(t)
	req := httptest.NewRequest(http.MethodPut, common.APIDiscoveryRoute, nil)
	rr := httptest.NewRecorder()

	c.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}
