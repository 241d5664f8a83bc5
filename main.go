// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// exectrace inspects and ships the trace dumps written by capture sessions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/exectrace/config"
	"go.opentelemetry.io/exectrace/tracestore"
	"go.opentelemetry.io/exectrace/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Same code the flag package exits with on ExitOnError
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	cfg, err := config.Parse("exectrace", os.Args[1:])
	if err != nil {
		return parseError("Failure to parse arguments: %v", err)
	}

	if cfg.Version {
		fmt.Printf("%s\n", vc.Version())
		return exitSuccess
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if code := sanityCheck(cfg); code != exitSuccess {
		return code
	}

	args := cfg.Args()
	cmd := commands[args[0]]

	// Context to drive the command, canceled on termination signals.
	mainCtx, mainCancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer mainCancel()

	log.Debugf("exectrace %s (revision %s)", vc.Version(), vc.Revision())

	store, err := openStore(mainCtx, cfg)
	if err != nil {
		return failure("Failed to open trace store: %v", err)
	}

	if err = cmd.run(mainCtx, &env{cfg: cfg, store: store, out: os.Stdout}, args[1:]); err != nil {
		return failure("%s failed: %v", args[0], err)
	}
	return exitSuccess
}

func sanityCheck(cfg *config.Config) exitCode {
	if err := cfg.Validate(); err != nil {
		return parseError("Invalid configuration: %v", err)
	}

	if cfg.DumpDirectory == "" {
		return parseError("No dump directory given, use -dump-dir")
	}

	args := cfg.Args()
	if len(args) == 0 {
		return parseError("Missing command, expected one of: %s",
			strings.Join(commandNames(), ", "))
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return parseError("Unknown command %q, expected one of: %s", args[0],
			strings.Join(commandNames(), ", "))
	}
	if cmd.needsRemote && cfg.S3Bucket == "" {
		return parseError("Command %s requires -s3-bucket", args[0])
	}
	return exitSuccess
}

func openStore(ctx context.Context, cfg *config.Config) (*tracestore.Store, error) {
	var s3client tracestore.S3API
	if cfg.S3Bucket != "" {
		client, err := tracestore.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		s3client = client
	}
	return tracestore.New(s3client, cfg.S3Bucket, cfg.DumpDirectory)
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
