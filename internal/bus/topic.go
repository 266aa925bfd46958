// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package bus implements the message-bus RPC layer (§4.8): the topic
// grammar with placeholder capture, the request/response dispatcher, and
// (in its mqtt and redis sub-packages) the two wire bindings.
package bus

import (
	"strings"

	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
)

// Template is a compiled '/'-delimited path pattern whose components are
// either literal strings or "{name}" placeholders.
type Template struct {
	raw        string
	components []component
	base       string // literal prefix up to (not including) the first placeholder
}

type component struct {
	literal   string
	paramName string // non-empty iff this component is a placeholder
}

// Compile parses a path template such as "/api/v3/device/name/{name}/{cmd}".
func Compile(pattern string) (*Template, error) {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return nil, edgeerr.New(edgeerr.KindBadRequest, "empty topic template")
	}
	parts := strings.Split(pattern, "/")
	t := &Template{raw: pattern, components: make([]component, len(parts))}

	baseParts := make([]string, 0, len(parts))
	sawPlaceholder := false
	for i, part := range parts {
		if len(part) >= 2 && part[0] == '{' && part[len(part)-1] == '}' {
			t.components[i] = component{paramName: part[1 : len(part)-1]}
			sawPlaceholder = true
		} else {
			t.components[i] = component{literal: part}
			if !sawPlaceholder {
				baseParts = append(baseParts, part)
			}
		}
	}
	t.base = strings.Join(baseParts, "/")
	return t, nil
}

// Base returns the subscription prefix: the literal components up to the
// first placeholder, with no trailing slash.
func (t *Template) Base() string { return t.base }

// MQTTSubscription returns the base with a trailing '#' wildcard
// appended, per the MQTT binding rule in §4.8.
func (t *Template) MQTTSubscription() string {
	if t.base == "" {
		return "#"
	}
	return t.base + "/#"
}

// Match attempts to unify topic against the template. It matches only
// when the tail after the base has the same number of components as the
// topic's tail (per §4.8 dispatch rule); placeholders unify into the
// returned parameter map.
func (t *Template) Match(topic string) (map[string]string, bool) {
	topic = strings.Trim(topic, "/")
	parts := strings.Split(topic, "/")
	if len(parts) != len(t.components) {
		return nil, false
	}
	params := make(map[string]string)
	for i, c := range t.components {
		if c.paramName != "" {
			params[c.paramName] = parts[i]
			continue
		}
		if c.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// Render substitutes params into the template to produce a concrete
// topic, the inverse of Match -- used by tests and by any caller that
// needs to construct a topic a handler would match (R3).
func (t *Template) Render(params map[string]string) (string, error) {
	out := make([]string, len(t.components))
	for i, c := range t.components {
		if c.paramName == "" {
			out[i] = c.literal
			continue
		}
		v, ok := params[c.paramName]
		if !ok {
			return "", edgeerr.Newf(edgeerr.KindBadRequest, "missing parameter %q", c.paramName)
		}
		out[i] = v
	}
	return strings.Join(out, "/"), nil
}

// RedisTopic remaps '/' to '.' and a trailing '#' wildcard to '*', per
// the Redis Streams topic-remap rule in §4.8.
func RedisTopic(mqttTopic string) string {
	s := strings.ReplaceAll(mqttTopic, "/", ".")
	if strings.HasSuffix(s, ".#") {
		s = strings.TrimSuffix(s, ".#") + ".*"
	} else if s == "#" {
		s = "*"
	}
	return s
}

// MQTTTopic is the inverse remap applied on Redis ingress.
func MQTTTopic(redisTopic string) string {
	s := strings.ReplaceAll(redisTopic, ".", "/")
	if strings.HasSuffix(s, "/*") {
		s = strings.TrimSuffix(s, "/*") + "/#"
	} else if s == "*" {
		s = "#"
	}
	return s
}
