// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
// Copyright (c) 2019 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads the service's local YAML configuration file and
// overlays it with environment variables, per §4.9 and EXPANSION A.1.
// Registry-sourced overlays live in internal/bootstrap/config, which
// calls back into ApplyOverride.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/openedge-platform/device-service-core/internal/common"
)

// LoadConfig loads the local configuration file for confDir (defaulting
// to common.ConfigDirectory), then applies any matching environment
// variable overrides.
func LoadConfig(confDir string) (*common.Config, error) {
	if len(confDir) == 0 {
		confDir = common.ConfigDirectory
	}

	filePath := path.Join(confDir, common.ConfigFileName)
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("could not build absolute path to %s: %v", filePath, err)
	}

	config, err := loadConfigFromFile(absPath)
	if err != nil {
		return nil, err
	}

	ApplyEnvOverrides(config, os.Environ())
	return config, nil
}

func loadConfigFromFile(absPath string) (config *common.Config, err error) {
	// As the yaml package can panic on deeply malformed documents, use a
	// deferred recover to turn that into a regular error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("could not load configuration file; invalid YAML (%s): %v", absPath, r)
		}
	}()

	config = &common.Config{}
	contents, err := ioutil.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration file (%s): %v", absPath, err)
	}

	if err := yaml.Unmarshal(contents, config); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file (%s): %v", absPath, err)
	}

	return config, nil
}

// ApplyEnvOverrides overlays config with values from the process
// environment: for every flattened configuration key, the variable named
// by that key with '/' replaced by '_' and upper-cased is looked up with
// os.LookupEnv (§4.9). The environ argument is not read, so callers may
// pass nil. It delegates the actual key application to ApplyOverride,
// the same entry point the registry watch path uses.
func ApplyEnvOverrides(config *common.Config, environ []string) {
	flat := Flatten(config)
	for key := range flat {
		envName := strings.ToUpper(strings.ReplaceAll(key, "/", "_"))
		if val, ok := os.LookupEnv(envName); ok {
			ApplyOverride(config, key, val)
		}
	}
	_ = environ // not read; values come from os.LookupEnv
}

// Flatten walks config's known keys and returns their current string
// values, used to discover which environment variables are relevant.
// Only leaf scalar fields are listed; the map-valued subtrees Driver,
// Writable/Telemetry/Metrics and MessageBus/Optional are matched by
// ApplyOverride directly against their prefix instead. Clients keys are
// handled by neither.
func Flatten(c *common.Config) map[string]string {
	return map[string]string{
		"Service/Host":                    c.Service.Host,
		"Service/Port":                    strconv.Itoa(c.Service.Port),
		"Service/ConnectRetries":          strconv.Itoa(c.Service.ConnectRetries),
		"Service/Timeout":                 c.Service.Timeout,
		"Service/StartupMsg":              c.Service.StartupMsg,
		"Device/DataTransform":            strconv.FormatBool(c.Device.DataTransform),
		"Device/MaxCmdOps":                strconv.Itoa(c.Device.MaxCmdOps),
		"Device/AllowedFails":             strconv.Itoa(c.Device.AllowedFails),
		"Device/DeviceDownTimeout":        c.Device.DeviceDownTimeout,
		"Device/EventQLength":             strconv.Itoa(c.Device.EventQLength),
		"Device/Discovery/Enabled":        strconv.FormatBool(c.Device.Discovery.Enabled),
		"Device/Discovery/Interval":       c.Device.Discovery.Interval,
		"Writable/LogLevel":               c.Writable.LogLevel,
		"Writable/Telemetry/Interval":     c.Writable.Telemetry.Interval,
		"MessageBus/Type":                 c.MessageBus.Type,
		"MessageBus/Protocol":             c.MessageBus.Protocol,
		"MessageBus/Host":                 c.MessageBus.Host,
		"MessageBus/Port":                 strconv.Itoa(c.MessageBus.Port),
		"MessageBus/AuthMode":             c.MessageBus.AuthMode,
		"MessageBus/SecretName":           c.MessageBus.SecretName,
		"MessageBus/BaseTopicPrefix":      c.MessageBus.BaseTopicPrefix,
		"SecretStore/Type":                c.SecretStore.Type,
		"SecretStore/Host":                c.SecretStore.Host,
		"SecretStore/Port":                strconv.Itoa(c.SecretStore.Port),
		"SecretStore/Protocol":            c.SecretStore.Protocol,
		"SecretStore/Path":                c.SecretStore.Path,
		"SecretStore/TokenFile":           c.SecretStore.TokenFile,
		"SecretStore/Authentication/AuthType": c.SecretStore.Authentication.AuthType,
		"Registry/Host":                   c.Registry.Host,
		"Registry/Port":                   strconv.Itoa(c.Registry.Port),
		"Registry/Type":                   c.Registry.Type,
	}
}

// ApplyOverride applies a single flattened key/value pair to config,
// whether it came from the environment, the registry's bootstrap read,
// or a watch notification (§4.9's "same override function" requirement).
// Keys under Driver/, Writable/Telemetry/Metrics/ or MessageBus/Optional/
// are routed into the corresponding map field. Keys under Clients/, like
// any other unrecognized key, are ignored.
func ApplyOverride(config *common.Config, key, value string) {
	switch {
	case strings.HasPrefix(key, "Driver/"):
		if config.Driver == nil {
			config.Driver = map[string]string{}
		}
		config.Driver[strings.TrimPrefix(key, "Driver/")] = value
		return
	case strings.HasPrefix(key, "Writable/Telemetry/Metrics/"):
		if config.Writable.Telemetry.Metrics == nil {
			config.Writable.Telemetry.Metrics = map[string]bool{}
		}
		name := strings.TrimPrefix(key, "Writable/Telemetry/Metrics/")
		config.Writable.Telemetry.Metrics[name] = parseBool(value)
		return
	case strings.HasPrefix(key, "MessageBus/Optional/"):
		if config.MessageBus.Optional == nil {
			config.MessageBus.Optional = map[string]string{}
		}
		config.MessageBus.Optional[strings.TrimPrefix(key, "MessageBus/Optional/")] = value
		return
	}

	switch key {
	case "Service/Host":
		config.Service.Host = value
	case "Service/Port":
		config.Service.Port = parseInt(value)
	case "Service/ConnectRetries":
		config.Service.ConnectRetries = parseInt(value)
	case "Service/Timeout":
		config.Service.Timeout = value
	case "Service/StartupMsg":
		config.Service.StartupMsg = value
	case "Device/DataTransform":
		config.Device.DataTransform = parseBool(value)
	case "Device/MaxCmdOps":
		config.Device.MaxCmdOps = parseInt(value)
	case "Device/AllowedFails":
		config.Device.AllowedFails = parseInt(value)
	case "Device/DeviceDownTimeout":
		config.Device.DeviceDownTimeout = value
	case "Device/EventQLength":
		config.Device.EventQLength = parseInt(value)
	case "Device/Discovery/Enabled":
		config.Device.Discovery.Enabled = parseBool(value)
	case "Device/Discovery/Interval":
		config.Device.Discovery.Interval = value
	case "Writable/LogLevel":
		config.Writable.LogLevel = value
	case "Writable/Telemetry/Interval":
		config.Writable.Telemetry.Interval = value
	case "MessageBus/Type":
		config.MessageBus.Type = value
	case "MessageBus/Protocol":
		config.MessageBus.Protocol = value
	case "MessageBus/Host":
		config.MessageBus.Host = value
	case "MessageBus/Port":
		config.MessageBus.Port = parseInt(value)
	case "MessageBus/AuthMode":
		config.MessageBus.AuthMode = value
	case "MessageBus/SecretName":
		config.MessageBus.SecretName = value
	case "MessageBus/BaseTopicPrefix":
		config.MessageBus.BaseTopicPrefix = value
	case "SecretStore/Type":
		config.SecretStore.Type = value
	case "SecretStore/Host":
		config.SecretStore.Host = value
	case "SecretStore/Port":
		config.SecretStore.Port = parseInt(value)
	case "SecretStore/Protocol":
		config.SecretStore.Protocol = value
	case "SecretStore/Path":
		config.SecretStore.Path = value
	case "SecretStore/TokenFile":
		config.SecretStore.TokenFile = value
	case "SecretStore/Authentication/AuthType":
		config.SecretStore.Authentication.AuthType = value
	case "Registry/Host":
		config.Registry.Host = value
	case "Registry/Port":
		config.Registry.Port = parseInt(value)
	case "Registry/Type":
		config.Registry.Type = value
	}
}

// IsWritableKey reports whether key falls under the Writable subtree and
// so must be re-applied without restart on a watch notification (§4.9).
func IsWritableKey(key string) bool {
	return strings.HasPrefix(key, "Writable/")
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
