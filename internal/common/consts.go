// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package common

const (
	ApiVersion = "v3"

	APIv3Prefix       = "/api/v3"
	APIPingRoute      = APIv3Prefix + "/ping"
	APIConfigRoute    = APIv3Prefix + "/config"
	APIMetricsRoute   = APIv3Prefix + "/metrics"
	APISecretRoute    = APIv3Prefix + "/secret"
	APIDiscoveryRoute = APIv3Prefix + "/discovery"

	ConfigDirectory = "./res"
	ConfigFileName  = "configuration.yaml"

	QueryPushEvent   = "ds-pushevent"
	QueryReturnEvent = "ds-returnevent"

	DefaultMaxCmdOps = 128
)
