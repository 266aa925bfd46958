// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package config implements the §4.9 registry bootstrap: a bounded
// retry loop to reach the registry/config store, the common+private
// tree merge, the "IsCommonConfigReady" gate, and the Writable/* watch
// that re-applies configuration without a restart. No concrete
// third-party registry client exists anywhere in the retrieved example
// pack, so Registry is modeled as an injected collaborator boundary,
// the same way internal/secret.Provider is.
package config

import (
	"context"
	"time"

	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/logging"

	coreconfig "github.com/openedge-platform/device-service-core/internal/config"
	"github.com/openedge-platform/device-service-core/internal/common"
)

// Registry is the external collaborator boundary for the registry/
// config-store client (Consul-shaped: a hierarchical key/value tree
// plus a watch primitive for change notification).
type Registry interface {
	// IsAlive reports whether the registry is currently reachable.
	IsAlive() bool
	// GetAll returns every key under path, flattened to path-relative
	// keys joined with "/", matching the grammar config.Flatten uses.
	GetAll(path string) (map[string]string, error)
	// WatchWritable delivers every key/value pair written under path
	// to onChange until ctx is cancelled. The key passed to onChange is
	// already relative to path.
	WatchWritable(ctx context.Context, path string, onChange func(key, value string)) error
}

const (
	commonConfigAllServicesPath    = "core-common-config-bootstrapper/all-services"
	commonConfigDeviceServicesPath = "core-common-config-bootstrapper/device-services"
	commonConfigReadyKey           = "IsCommonConfigReady"
)

// BootstrapOptions bounds the retry loop used to reach the registry:
// retry up to Retries times, sleeping Interval between attempts.
type BootstrapOptions struct {
	Retries  int
	Interval time.Duration
}

// Load reaches reg with a bounded retry loop, waits for the common
// configuration tree to report ready, then overlays cfg with the merged
// common tree (device-services wins over all-services) followed by the
// service's own private tree under "<root>/<serviceName>" (§4.9).
//
// Environment variables are re-applied last so they continue to win
// over anything the registry supplied, matching LoadConfig's own
// env-overrides-last order.
func Load(ctx context.Context, reg Registry, serviceName string, cfg *common.Config, opts BootstrapOptions, logger logging.Client) error {
	if err := waitAlive(reg, opts, logger); err != nil {
		return err
	}

	merged, err := waitCommonConfigReady(reg, opts, logger)
	if err != nil {
		return err
	}

	private, err := reg.GetAll(serviceName)
	if err != nil {
		return edgeerr.Wrap(edgeerr.KindServerDown, "read private registry tree", err)
	}
	for key, value := range merged {
		coreconfig.ApplyOverride(cfg, key, value)
	}
	for key, value := range private {
		coreconfig.ApplyOverride(cfg, key, value)
	}

	coreconfig.ApplyEnvOverrides(cfg, nil)
	return nil
}

func waitAlive(reg Registry, opts BootstrapOptions, logger logging.Client) error {
	retries := opts.Retries
	if retries <= 0 {
		retries = 1
	}
	for attempt := 1; attempt <= retries; attempt++ {
		if reg.IsAlive() {
			return nil
		}
		logger.Warn("registry not yet reachable, attempt %d/%d", attempt, retries)
		time.Sleep(opts.Interval)
	}
	return edgeerr.Newf(edgeerr.KindServerDown, "registry did not become reachable within %d attempts", retries)
}

// waitCommonConfigReady re-polls the common tree until its
// "IsCommonConfigReady" gate value reads "true" (§4.9), merging
// all-services under device-services on every poll so the final map
// reflects the most recent read once the gate opens.
func waitCommonConfigReady(reg Registry, opts BootstrapOptions, logger logging.Client) (map[string]string, error) {
	retries := opts.Retries
	if retries <= 0 {
		retries = 1
	}
	for attempt := 1; attempt <= retries; attempt++ {
		allServices, err := reg.GetAll(commonConfigAllServicesPath)
		if err != nil {
			return nil, edgeerr.Wrap(edgeerr.KindServerDown, "read common registry tree (all-services)", err)
		}
		deviceServices, err := reg.GetAll(commonConfigDeviceServicesPath)
		if err != nil {
			return nil, edgeerr.Wrap(edgeerr.KindServerDown, "read common registry tree (device-services)", err)
		}

		merged := mergeTrees(allServices, deviceServices)
		if merged[commonConfigReadyKey] == "true" {
			return merged, nil
		}
		logger.Warn("common configuration not yet ready, attempt %d/%d", attempt, retries)
		time.Sleep(opts.Interval)
	}
	return nil, edgeerr.Newf(edgeerr.KindServerDown, "common configuration did not become ready within %d attempts", retries)
}

// mergeTrees combines allServices and deviceServices, with
// deviceServices winning any key present in both (§4.9).
func mergeTrees(allServices, deviceServices map[string]string) map[string]string {
	merged := make(map[string]string, len(allServices)+len(deviceServices))
	for k, v := range allServices {
		merged[k] = v
	}
	for k, v := range deviceServices {
		merged[k] = v
	}
	return merged
}

// Watch starts the Writable/* watch (§4.9): every key/value pair
// written under "<serviceName>/Writable" is applied to cfg via the same
// ApplyOverride entry point the initial load used, and onReload is
// called with the full "Writable/..." key so the caller can re-apply
// log level, discovery interval, metrics interval or driver
// reconfiguration without a restart.
func Watch(ctx context.Context, reg Registry, serviceName string, cfg *common.Config, onReload func(key string), logger logging.Client) error {
	return reg.WatchWritable(ctx, serviceName+"/Writable", func(key, value string) {
		fullKey := "Writable/" + key
		coreconfig.ApplyOverride(cfg, fullKey, value)
		logger.Info("applied registry watch override %s=%s", fullKey, value)
		if onReload != nil {
			onReload(fullKey)
		}
	})
}
