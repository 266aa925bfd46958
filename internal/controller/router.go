// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package controller is the thin HTTP control surface of §6: ping,
// config dump, metrics dump, secret intake and discovery trigger. None
// of this is core command-pipeline scope -- it exists only so an
// operator or platform component can poll/administer the service
// without going over the message bus.
package controller

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/secret"
)

// MetricsSource is the telemetry.Registry surface the controller needs;
// declared locally to avoid importing internal/telemetry just for this.
type MetricsSource interface {
	Snapshot() map[string]int64
}

// DiscoveryTrigger starts one discovery run, returning an error only if
// one is already in flight (coalesced per the supplemented discovery
// feature).
type DiscoveryTrigger interface {
	TriggerDiscovery() error
}

type Controller struct {
	Config     *common.Config
	Metrics    MetricsSource
	Secrets    secret.Provider
	Discovery  DiscoveryTrigger
	Logger     logging.Client
	ServiceKey string
}

// Router builds the mux.Router exposing this controller's routes.
func (c *Controller) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(common.APIPingRoute, c.ping).Methods(http.MethodGet)
	r.HandleFunc(common.APIConfigRoute, c.getConfig).Methods(http.MethodGet)
	r.HandleFunc(common.APIMetricsRoute, c.getMetrics).Methods(http.MethodGet)
	r.HandleFunc(common.APISecretRoute, c.postSecret).Methods(http.MethodPost)
	r.HandleFunc(common.APIDiscoveryRoute, c.triggerDiscovery).Methods(http.MethodPut)
	return r
}

func (c *Controller) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"serviceName": c.ServiceKey})
}

func (c *Controller) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Config)
}

func (c *Controller) getMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Metrics.Snapshot())
}

type secretRequest struct {
	SecretName string            `json:"secretName"`
	SecretData map[string]string `json:"secretData"`
}

func (c *Controller) postSecret(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "failed to read body"})
		return
	}
	var req secretRequest
	if err := json.Unmarshal(body, &req); err != nil || req.SecretName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid secret request"})
		return
	}
	if err := c.Secrets.StoreSecret(req.SecretName, req.SecretData); err != nil {
		c.Logger.Error("failed to store secret %s: %v", req.SecretName, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "secret stored"})
}

func (c *Controller) triggerDiscovery(w http.ResponseWriter, r *http.Request) {
	if c.Discovery == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"message": "discovery not supported by this driver"})
		return
	}
	if err := c.Discovery.TriggerDiscovery(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "discovery triggered"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
