// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the settings of a trace capture session.
package config // import "go.opentelemetry.io/exectrace/config"

import (
	"errors"
	"flag"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// Default values for the settings.
	DefaultBufferCapacity    = 1 << 20
	DefaultDecodeCacheSize   = 4096
	DefaultInvocationTimeout = 10 * time.Second
	DefaultUploadParallelism = 4
	DefaultUploadInterval    = time.Minute

	// MaxBufferCapacity bounds the event buffer to 1 GiB of events.
	MaxBufferCapacity = 1 << 26
)

// Config is the configuration of a tracehandler.Handler.
type Config struct {
	// BufferCapacity is the number of events one capture can hold. Events
	// beyond it are dropped.
	BufferCapacity int
	// SharedBufferPath, if set, places the event buffer in a memory mapped
	// file so that it can be written from another address space.
	SharedBufferPath string
	// DecodeCacheSize is the number of decoded instructions kept in the LRU.
	DecodeCacheSize int
	// InvocationTimeout bounds a single invocation. Zero disables the limit.
	InvocationTimeout time.Duration

	// DumpDirectory is where trace dumps are stored. Empty disables dumps.
	DumpDirectory string
	// S3Bucket enables uploading dumps to the given bucket.
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	// UploadParallelism bounds the number of concurrent uploads.
	UploadParallelism int
	// UploadInterval is the period of the background upload of local dumps.
	UploadInterval time.Duration

	Verbose bool
	Version bool

	fs *flag.FlagSet
}

// Default returns a Config with every setting at its default.
func Default() Config {
	return Config{
		BufferCapacity:    DefaultBufferCapacity,
		DecodeCacheSize:   DefaultDecodeCacheSize,
		InvocationTimeout: DefaultInvocationTimeout,
		UploadParallelism: DefaultUploadParallelism,
		UploadInterval:    DefaultUploadInterval,
	}
}

// Args returns the positional arguments left after parsing flags.
func (cfg *Config) Args() []string {
	if cfg.fs == nil {
		return nil
	}
	return cfg.fs.Args()
}

// Validate returns an error describing every invalid setting.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.BufferCapacity <= 0 || cfg.BufferCapacity > MaxBufferCapacity {
		errs = append(errs, fmt.Errorf("buffer capacity %d out of range [1,%d]",
			cfg.BufferCapacity, MaxBufferCapacity))
	}
	if cfg.DecodeCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid decode cache size %d", cfg.DecodeCacheSize))
	}
	if cfg.InvocationTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative invocation timeout %v", cfg.InvocationTimeout))
	}
	if cfg.UploadParallelism <= 0 {
		errs = append(errs, fmt.Errorf("invalid upload parallelism %d", cfg.UploadParallelism))
	}
	if cfg.UploadInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid upload interval %v", cfg.UploadInterval))
	}
	if cfg.S3Bucket != "" && cfg.DumpDirectory == "" {
		errs = append(errs, errors.New("uploading dumps to S3 requires a dump directory"))
	}
	return errors.Join(errs...)
}

// Dump logs all settings at debug level. Used for verbose mode logging.
func (cfg *Config) Dump() {
	log.Debug("Config:")
	if cfg.fs != nil {
		cfg.fs.VisitAll(func(f *flag.Flag) {
			log.Debugf("%s: %v", f.Name, f.Value)
		})
		return
	}
	log.Debugf("%+v", *cfg)
}
