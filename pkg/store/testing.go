package store

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testBucket = "test-bucket"
	testRegion = "us-east-1"
)

// startLocalstack boots an S3-only localstack container, creates the
// artifact bucket inside it, and returns a config pointing at the
// mapped endpoint. The container is terminated via t.Cleanup.
func startLocalstack(t *testing.T) *S3Config {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "localstack/localstack:latest",
			Env: map[string]string{
				"SERVICES":       "s3",
				"DEFAULT_REGION": testRegion,
			},
			ExposedPorts: []string{"4566/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready."),
				wait.ForListeningPort("4566/tcp"),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start localstack: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate localstack: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	cfg := &S3Config{
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Bucket:          testBucket,
		Prefix:          "test",
		EndpointURL:     fmt.Sprintf("http://%s", net.JoinHostPort(host, mappedPort.Port())),
		Region:          testRegion,
	}

	base := newTestBaseRepo(t, cfg)
	if _, err := base.store.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(testBucket),
	}); err != nil {
		t.Fatalf("Failed to create bucket %s: %v", testBucket, err)
	}

	return cfg
}

func newTestBaseRepo(t *testing.T, cfg *S3Config) BaseRepo {
	t.Helper()
	setupTest(t)

	base, err := NewBaseRepo(context.Background(), testLogger(), cfg, NewMetrics("test"))
	if err != nil {
		t.Fatalf("Failed to create base repo: %v", err)
	}

	return base
}

func newTestReportsRepo(t *testing.T, cfg *S3Config) *ReportsRepo {
	t.Helper()
	setupTest(t)

	repo, err := NewReportsRepo(context.Background(), testLogger(), cfg, NewMetrics("test"))
	if err != nil {
		t.Fatalf("Failed to create reports repo: %v", err)
	}

	return repo
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// setupTest swaps in a throwaway registry so repeated NewMetrics calls
// within one test binary do not collide.
func setupTest(t *testing.T) {
	t.Helper()

	prometheus.DefaultRegisterer = prometheus.NewRegistry()
}
