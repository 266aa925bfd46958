// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"strconv"
	"time"

	coreerrors "github.com/openedge-platform/device-service-core/internal/errors"
)

// ParseInterval parses a "<n>ms|s|m|h" interval string as used by
// autoevents, discovery scheduling and telemetry reporting.
func ParseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, coreerrors.New(coreerrors.KindBadRequest, "empty interval")
	}

	unitLen := 1
	switch {
	case len(s) >= 2 && s[len(s)-2:] == "ms":
		unitLen = 2
	case len(s) >= 1 && (s[len(s)-1] == 's' || s[len(s)-1] == 'm' || s[len(s)-1] == 'h'):
		unitLen = 1
	default:
		return 0, coreerrors.Newf(coreerrors.KindBadRequest, "invalid interval %q: unrecognized unit", s)
	}

	numPart := s[:len(s)-unitLen]
	unit := s[len(s)-unitLen:]

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil || n < 0 {
		return 0, coreerrors.Newf(coreerrors.KindBadRequest, "invalid interval %q: bad numeric part", s)
	}

	switch unit {
	case "ms":
		return time.Duration(n) * time.Millisecond, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	}
	return 0, coreerrors.Newf(coreerrors.KindBadRequest, "invalid interval %q: unrecognized unit", s)
}
