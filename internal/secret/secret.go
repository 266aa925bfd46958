// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package secret implements the secret-store collaborator boundary:
// storing and retrieving named secrets, with an insecure file-backed
// implementation for development and test, matching the split between
// secrets-insecure.c and secrets-vault.c in the supplemented feature set
// (the vault-backed implementation itself is a Non-goal; this package
// only defines and satisfies the boundary interface).
package secret

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"sync"

	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
)

// Provider is the external collaborator boundary the core depends on.
// StoreSecret both persists the secret and must invalidate any
// previously cached client built from the old value under the same
// name (§ supplement item 2).
type Provider interface {
	StoreSecret(name string, values map[string]string) error
	GetSecret(name string) (map[string]string, error)
}

// InsecureProvider persists secrets to a single JSON file, matching the
// disk-backed path of secrets-insecure.c. Not suitable for production
// use; a vault-backed Provider is a Non-goal of this service.
type InsecureProvider struct {
	mu   sync.Mutex
	path string
	data map[string]map[string]string

	onInvalidate func(name string)
}

// NewInsecureProvider loads (or initializes) the secrets file at path.
// onInvalidate, if non-nil, is called with the secret name every time
// StoreSecret replaces an existing value, so callers holding a client
// built from the old secret can drop it.
func NewInsecureProvider(path string, onInvalidate func(name string)) (*InsecureProvider, error) {
	p := &InsecureProvider{path: path, data: map[string]map[string]string{}, onInvalidate: onInvalidate}

	contents, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, edgeerr.Wrap(edgeerr.KindInternal, "read secrets file", err)
	}
	if len(contents) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(contents, &p.data); err != nil {
		return nil, edgeerr.Wrap(edgeerr.KindConfigParse, "parse secrets file", err)
	}
	return p, nil
}

func (p *InsecureProvider) StoreSecret(name string, values map[string]string) error {
	p.mu.Lock()
	_, existed := p.data[name]
	p.data[name] = values
	contents, err := json.Marshal(p.data)
	if err != nil {
		p.mu.Unlock()
		return edgeerr.Wrap(edgeerr.KindInternal, "marshal secrets", err)
	}
	writeErr := ioutil.WriteFile(p.path, contents, 0600)
	p.mu.Unlock()

	if writeErr != nil {
		return edgeerr.Wrap(edgeerr.KindInternal, "write secrets file", writeErr)
	}
	if existed && p.onInvalidate != nil {
		p.onInvalidate(name)
	}
	return nil
}

func (p *InsecureProvider) GetSecret(name string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	values, ok := p.data[name]
	if !ok {
		return nil, edgeerr.Newf(edgeerr.KindNotFound, "no secret named %q", name)
	}
	return values, nil
}

var _ Provider = (*InsecureProvider)(nil)
