// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config // import "go.opentelemetry.io/exectrace/config"

import (
	"flag"

	"github.com/peterbourgon/ff/v3"
)

// EnvVarPrefix prefixes the environment variables that override flags,
// e.g. EXECTRACE_BUFFER_CAPACITY.
const EnvVarPrefix = "EXECTRACE"

// Help strings for command line arguments
var (
	bufferCapacityHelp = "Number of events a single capture can record. " +
		"Further events are dropped and a warning is logged."
	sharedBufferHelp = "Path of a file to map the event buffer into, so that it can be " +
		"shared with the instrumented process. The heap is used if empty."
	decodeCacheSizeHelp   = "Number of decoded instructions to cache."
	invocationTimeoutHelp = "Maximum duration of a single invocation. 0 disables the limit."
	dumpDirHelp           = "Directory to store trace dumps in. Dumps are disabled if empty."
	s3BucketHelp          = "S3 bucket to upload trace dumps to."
	s3RegionHelp          = "Region of the S3 bucket."
	s3EndpointHelp        = "Custom S3 endpoint, e.g. for MinIO."
	uploadIntervalHelp    = "Interval of the background upload of local dumps."
	uploadParallelismHelp = "Maximum number of concurrent dump uploads."
	verboseModeHelp       = "Enable verbose logging."
	versionHelp           = "Show version."
)

// Parse builds the flag set named name and parses args, the environment and
// an optional -config file into a Config.
func Parse(name string, args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.IntVar(&cfg.BufferCapacity, "buffer-capacity", DefaultBufferCapacity, bufferCapacityHelp)
	fs.IntVar(&cfg.DecodeCacheSize, "decode-cache-size", DefaultDecodeCacheSize,
		decodeCacheSizeHelp)
	fs.StringVar(&cfg.DumpDirectory, "dump-dir", "", dumpDirHelp)
	fs.DurationVar(&cfg.InvocationTimeout, "invocation-timeout", DefaultInvocationTimeout,
		invocationTimeoutHelp)
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", "", s3BucketHelp)
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", "", s3EndpointHelp)
	fs.StringVar(&cfg.S3Region, "s3-region", "", s3RegionHelp)
	fs.StringVar(&cfg.SharedBufferPath, "shared-buffer", "", sharedBufferHelp)
	fs.DurationVar(&cfg.UploadInterval, "upload-interval", DefaultUploadInterval,
		uploadIntervalHelp)
	fs.IntVar(&cfg.UploadParallelism, "upload-parallelism", DefaultUploadParallelism,
		uploadParallelismHelp)

	fs.BoolVar(&cfg.Verbose, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&cfg.Verbose, "verbose", false, verboseModeHelp)
	fs.BoolVar(&cfg.Version, "version", false, versionHelp)

	fs.String("config", "", "Path to a configuration file.")

	cfg.fs = fs

	return &cfg, ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// Ignore configuration file (only) options that this version does not know.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
}
