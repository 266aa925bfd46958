// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package common

// Config is the root of the service's nested configuration tree (§6).
// It is decoded from YAML, then overlaid by environment variables and,
// when a registry is configured, by the registry's common and private
// trees (§4.9).
type Config struct {
	Service     ServiceInfo
	Device      DeviceInfo
	Writable    WritableInfo
	MessageBus  MessageBusInfo
	SecretStore SecretStoreInfo
	Registry    RegistryInfo
	Clients     map[string]ClientInfo
	Driver      map[string]string
}

type ServiceInfo struct {
	Host           string
	Port           int
	ConnectRetries int
	Timeout        string
	StartupMsg     string
}

type DeviceInfo struct {
	DataTransform     bool
	MaxCmdOps         int
	AllowedFails      int
	DeviceDownTimeout string
	EventQLength      int
	Discovery         DiscoveryInfo
}

type DiscoveryInfo struct {
	Enabled  bool
	Interval string
}

type WritableInfo struct {
	LogLevel  string
	Telemetry TelemetryInfo
}

type TelemetryInfo struct {
	Interval string
	Metrics  map[string]bool
}

type MessageBusInfo struct {
	Type            string
	Protocol        string
	Host            string
	Port            int
	AuthMode        string
	SecretName      string
	BaseTopicPrefix string
	Optional        map[string]string
}

type SecretStoreInfo struct {
	Type                    string
	Host                    string
	Port                    int
	Protocol                string
	Path                    string
	TokenFile               string
	SecretsFile             string
	DisableScrubSecretsFile bool
	Authentication          AuthenticationInfo
}

type AuthenticationInfo struct {
	AuthType string
}

type RegistryInfo struct {
	Host string
	Port int
	Type string
}

type ClientInfo struct {
	Host string
	Port int
}
