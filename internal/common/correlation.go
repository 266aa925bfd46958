// -*- mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// WithCorrelationID returns a context carrying id as the request's
// correlation ID, threaded through handler signatures instead of the
// thread-local the source implementation used (see Design Notes).
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the correlation ID on ctx, or "" if none was
// set.
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// NewCorrelationID mints a fresh correlation ID for requests that didn't
// arrive with one.
func NewCorrelationID() string {
	return uuid.New().String()
}
