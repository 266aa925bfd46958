// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error taxonomy shared by every layer of the
// core: the command pipeline, the device map, the bus dispatcher and the
// bootstrap sequence all report failures through this package so that
// handlers at the edge (HTTP, bus reply) can translate a Kind into a
// numeric status without inspecting error strings.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a core error per the taxonomy in the service spec.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindLocked            Kind = "Locked"
	KindBadRequest        Kind = "BadRequest"
	KindConfigParse       Kind = "ConfigParse"
	KindServerDown        Kind = "RemoteServerDown"
	KindDriverError       Kind = "DriverError"
	KindOverflow          Kind = "Overflow"
	KindInternal          Kind = "Internal"
	KindDuplicateName     Kind = "DuplicateName"
	KindCommunicationErr  Kind = "CommunicationError"
	KindUnsupportedAction Kind = "Unsupported"
)

// edgeXErr is the concrete error carried across package boundaries. Callers
// should not type-assert it directly; use Kind(err) and Message(err).
type edgeXErr struct {
	kind    Kind
	message string
	cause   error
}

func (e *edgeXErr) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *edgeXErr) Unwrap() error { return e.cause }

// New builds a new error of the given kind with a message and no cause.
func New(kind Kind, message string) error {
	return &edgeXErr{kind: kind, message: message}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &edgeXErr{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it as the cause via
// github.com/pkg/errors so a stack trace is retained for ERROR-level logs.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return New(kind, message)
	}
	return &edgeXErr{kind: kind, message: message, cause: errors.WithStack(cause)}
}

// KindOf extracts the Kind of err, defaulting to KindInternal when err does
// not carry one (a programmer error somewhere failed to classify).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *edgeXErr
	for err != nil {
		if ee, ok := err.(*edgeXErr); ok {
			e = ee
			break
		}
		err = errors.Unwrap(err)
	}
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Is reports whether err (or anything it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
