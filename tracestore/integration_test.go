// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

//go:build integration

package tracestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioImage = "minio/minio:RELEASE.2024-10-13T13-34-11Z"
	minioUser  = "exectrace"
	minioPass  = "exectrace-secret"
)

func startMinio(ctx context.Context, t *testing.T) string {
	t.Helper()
	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        minioImage,
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPass,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cont.Terminate(ctx2); err != nil {
			require.ErrorIs(t, err, context.DeadlineExceeded)
		}
	})

	h, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", h, port.Port())
}

func TestMinioRoundTrip(t *testing.T) {
	ctx := context.Background()
	endpoint := startMinio(ctx, t)

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPass)
	client, err := NewS3Client(ctx, "us-east-1", endpoint)
	require.NoError(t, err)

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("traces")})
	require.NoError(t, err)

	writer, err := New(client, "traces", t.TempDir())
	require.NoError(t, err)
	id, _, err := writer.Insert(sampleDump(t, "minio"))
	require.NoError(t, err)
	require.NoError(t, writer.UploadAll(ctx, 4))

	reader, err := New(client, "traces", t.TempDir())
	require.NoError(t, err)
	present, err := reader.IsPresentRemotely(ctx, id)
	require.NoError(t, err)
	assert.True(t, present)

	loaded, err := reader.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "minio", loaded.SessionID)

	require.NoError(t, reader.RemoveRemote(ctx, id))
	present, err = reader.IsPresentRemotely(ctx, id)
	require.NoError(t, err)
	assert.False(t, present)
}
