// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Command device-simple runs the core against simpleDriver, a
// no-hardware reference driver. It is the equivalent of the teacher's
// device-system/device-modbus example commands, generalized to the new
// bootstrap entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openedge-platform/device-service-core/internal/bootstrap"
	"github.com/openedge-platform/device-service-core/internal/logging"
)

const (
	serviceVersion = "1.0.0"
)

func main() {
	serviceName := flag.String("n", "device-simple", "service name, used as the message bus topic root and registry key")
	confDir := flag.String("confdir", "./res", "directory containing configuration.yaml")
	secretsFile := flag.String("secretsfile", "./res/secrets.json", "path to the insecure secret store file")
	flag.Parse()

	lc := logging.NewClient(*serviceName, logging.INFO)
	driver := newSimpleDriver(lc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Run(ctx, driver, bootstrap.Options{
		ServiceName:    *serviceName,
		ServiceVersion: serviceVersion,
		ConfDir:        *confDir,
		SecretsFile:    *secretsFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *serviceName, err)
		os.Exit(1)
	}

	<-ctx.Done()
	lc.Info("shutdown signal received")
	if err := svc.Stop(false); err != nil {
		lc.Error("shutdown error: %v", err)
	}
}
