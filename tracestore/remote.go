// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracestore // import "go.opentelemetry.io/exectrace/tracestore"

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	sha256 "github.com/minio/sha256-simd"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/exectrace/metrics"
)

// s3KeyPrefix defines the prefix prepended to all S3 keys.
const s3KeyPrefix = "exectrace-dumps/"

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput,
		optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput,
		optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput,
		optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// NewS3Client creates an S3 client from the default AWS configuration
// sources. A non-empty endpoint selects a custom, path-style endpoint such as
// MinIO.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload uploads a dump from the local store to the remote. If the dump is
// already present remotely, no operation is performed.
func (store *Store) Upload(ctx context.Context, id ID) error {
	if !store.HasRemote() {
		return errNoRemote
	}
	present, err := store.IsPresentRemotely(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check whether the dump exists on remote: %w", err)
	}
	if present {
		return nil
	}

	localPath := store.makeLocalPath(id)
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return fmt.Errorf("failed to hash content of %q: %v", localPath, err)
	}
	contentSHA256 := base64.StdEncoding.EncodeToString(hasher.Sum(nil))

	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to set position in file %q: %v", localPath, err)
	}

	_, err = store.s3client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(store.bucket),
		Key:                aws.String(makeS3Key(id)),
		Body:               file,
		ContentType:        aws.String("application/zstd"),
		ContentDisposition: aws.String("attachment"),
		ChecksumSHA256:     aws.String(contentSHA256),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	metrics.Add(metrics.IDDumpsUploaded, 1)
	return nil
}

// UploadAll uploads every local dump, running at most parallelism uploads at
// a time.
func (store *Store) UploadAll(ctx context.Context, parallelism int) error {
	dumps, err := store.ListLocal()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallelism, 1))
	for id := range dumps {
		g.Go(func() error {
			if err := store.Upload(ctx, id); err != nil {
				return fmt.Errorf("failed to upload %s: %w", id, err)
			}
			log.Debugf("Uploaded dump %s", id)
			return nil
		})
	}
	return g.Wait()
}

// Download fetches a dump from the remote into the local store.
func (store *Store) Download(ctx context.Context, id ID) error {
	if !store.HasRemote() {
		return errNoRemote
	}
	resp, err := store.s3client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(makeS3Key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to request file: %w", err)
	}
	defer resp.Body.Close()

	// Download the file to a temporary location to prevent half-complete
	// dumps on crashes.
	file, err := os.CreateTemp(store.localPath, localTempPrefix)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()
	if _, err = io.Copy(file, resp.Body); err != nil {
		_ = os.Remove(file.Name())
		return fmt.Errorf("failed to receive file: %w", err)
	}

	if err = commitTempFile(file, store.makeLocalPath(id)); err != nil {
		_ = os.Remove(file.Name())
		return err
	}
	return nil
}

// IsPresentRemotely checks whether a dump is present in the remote bucket.
func (store *Store) IsPresentRemotely(ctx context.Context, id ID) (bool, error) {
	if !store.HasRemote() {
		return false, errNoRemote
	}
	_, err := store.s3client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(makeS3Key(id)),
	})
	if err != nil {
		if isErrNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query dump existence: %w", err)
	}
	return true, nil
}

// RemoveRemote removes a dump from the remote bucket. No-op if not present.
func (store *Store) RemoveRemote(ctx context.Context, id ID) error {
	if !store.HasRemote() {
		return errNoRemote
	}
	_, err := store.s3client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(makeS3Key(id)),
	})
	if err != nil && !isErrNoSuchKey(err) {
		return fmt.Errorf("failed to delete file from remote: %w", err)
	}
	return nil
}

// ensurePresentLocally makes sure a dump is present locally, downloading it
// from the remote if required, and returns its local path.
func (store *Store) ensurePresentLocally(ctx context.Context, id ID) (string, error) {
	localPath := store.makeLocalPath(id)
	present, err := store.IsPresentLocally(id)
	if err != nil {
		return "", err
	}
	if present {
		return localPath, nil
	}
	if !store.HasRemote() {
		return "", fmt.Errorf("dump %s is not present locally", id)
	}
	if err = store.Download(ctx, id); err != nil {
		return "", err
	}
	return localPath, nil
}

// makeS3Key creates the S3 key for the given dump.
func makeS3Key(id ID) string {
	return s3KeyPrefix + id.String()
}

// isErrNoSuchKey checks whether the given AWS error indicates that the given
// key does not exist. HeadObject reports a missing key as a bare 404, which
// the client turns into `NotFound`, so both are accepted.
func isErrNoSuchKey(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
