package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// Artifact kinds stored per session.
const (
	ArtifactJSON       = "json"
	ArtifactHTML       = "html"
	ArtifactScreenshot = "screenshot"
	ArtifactLog        = "log"
)

// ReportArtifact represents a single artifact produced by a probe session.
type ReportArtifact struct {
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // json, html, screenshot, log
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Content   []byte    `json:"content"`
}

// ReportsRepo implements Repository for report artifacts.
type ReportsRepo struct {
	BaseRepo
}

// NewReportsRepo creates a new ReportsRepo.
func NewReportsRepo(ctx context.Context, log *logrus.Logger, cfg *S3Config, metrics *Metrics) (*ReportsRepo, error) {
	baseRepo, err := NewBaseRepo(ctx, log, cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create base repo: %w", err)
	}

	return &ReportsRepo{
		BaseRepo: baseRepo,
	}, nil
}

// List implements Repository[*ReportArtifact]. It returns artifact
// metadata only, content stays in the bucket until fetched with
// GetArtifact.
func (s *ReportsRepo) List(ctx context.Context) ([]*ReportArtifact, error) {
	defer s.trackDuration("list", "reports")()

	var (
		artifacts []*ReportArtifact
		input     = &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(fmt.Sprintf("%s/sessions/", s.prefix)),
		}
		paginator = s3.NewListObjectsV2Paginator(s.store, input)
	)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.observeOperation("list", "reports", err)

			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}

		for _, obj := range page.Contents {
			// Format: prefix/sessions/{sessionID}/{kind}/{name}
			parts := strings.Split(*obj.Key, "/")
			if len(parts) < 4 || parts[len(parts)-4] != "sessions" {
				continue
			}

			artifacts = append(artifacts, &ReportArtifact{
				SessionID: parts[len(parts)-3],
				Kind:      parts[len(parts)-2],
				Name:      parts[len(parts)-1],
				CreatedAt: *obj.LastModified,
				UpdatedAt: *obj.LastModified,
			})
		}
	}

	s.observeOperation("list", "reports", nil)
	s.metrics.objectsTotal.WithLabelValues("reports").Set(float64(len(artifacts)))

	return artifacts, nil
}

// Persist implements Repository[*ReportArtifact].
func (s *ReportsRepo) Persist(ctx context.Context, artifact *ReportArtifact) error {
	defer s.trackDuration("persist", "reports")()

	if artifact == nil || artifact.SessionID == "" || artifact.Kind == "" || artifact.Name == "" {
		return fmt.Errorf("artifact needs a session ID, kind and name")
	}

	put := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(artifact)),
	}

	if len(artifact.Content) > 0 {
		contentType := http.DetectContentType(artifact.Content)

		put.Body = bytes.NewReader(artifact.Content)
		put.ContentType = aws.String(contentType)

		s.metrics.objectSizeBytes.WithLabelValues("reports").Observe(float64(len(artifact.Content)))
	}

	if _, err := s.store.PutObject(ctx, put); err != nil {
		s.observeOperation("persist", "reports", err)

		return fmt.Errorf("failed to put artifact: %w", err)
	}

	s.observeOperation("persist", "reports", nil)
	s.metrics.artifactsPersisted.WithLabelValues(artifact.Kind).Inc()

	return nil
}

// Purge implements Repository[*ReportArtifact]. It removes every
// artifact belonging to the given session.
func (s *ReportsRepo) Purge(ctx context.Context, identifiers ...string) error {
	if len(identifiers) != 1 {
		return fmt.Errorf("expected a session ID identifier, got %d identifiers", len(identifiers))
	}

	defer s.trackDuration("purge", "reports")()

	var (
		sessionID = identifiers[0]
		input     = &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(fmt.Sprintf("%s/sessions/%s/", s.prefix, sessionID)),
		}
		paginator = s3.NewListObjectsV2Paginator(s.store, input)
	)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.observeOperation("purge", "reports", err)

			return fmt.Errorf("failed to list objects for deletion: %w", err)
		}

		for _, obj := range page.Contents {
			if _, err := s.store.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				s.observeOperation("purge", "reports", err)

				return fmt.Errorf("failed to delete object %s: %w", *obj.Key, err)
			}
		}
	}

	s.observeOperation("purge", "reports", nil)

	return nil
}

// Key implements Repository[*ReportArtifact].
func (s *ReportsRepo) Key(artifact *ReportArtifact) string {
	if artifact == nil {
		s.log.Error("artifact is nil")

		return ""
	}

	return fmt.Sprintf("%s/sessions/%s/%s/%s", s.prefix, artifact.SessionID, artifact.Kind, artifact.Name)
}

// GetArtifact retrieves an artifact, content included.
func (s *ReportsRepo) GetArtifact(ctx context.Context, sessionID, kind, name string) (*ReportArtifact, error) {
	defer s.trackDuration("get", "reports")()

	key := fmt.Sprintf("%s/sessions/%s/%s/%s", s.prefix, sessionID, kind, name)

	output, err := s.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.observeOperation("get", "reports", err)

		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, &ArtifactNotFoundError{SessionID: sessionID, Kind: kind, Name: name}
		}

		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	defer output.Body.Close()

	content, err := io.ReadAll(output.Body)
	if err != nil {
		s.observeOperation("get", "reports", err)

		return nil, fmt.Errorf("failed to read artifact content: %w", err)
	}

	s.observeOperation("get", "reports", nil)
	s.metrics.objectSizeBytes.WithLabelValues("reports").Observe(float64(len(content)))

	modified := time.Now()
	if output.LastModified != nil {
		modified = *output.LastModified
	}

	return &ReportArtifact{
		SessionID: sessionID,
		Kind:      kind,
		Name:      name,
		CreatedAt: modified,
		UpdatedAt: modified,
		Content:   content,
	}, nil
}

// GetBucket returns the S3 bucket name.
func (s *ReportsRepo) GetBucket() string {
	return s.bucket
}

// GetPrefix returns the S3 prefix.
func (s *ReportsRepo) GetPrefix() string {
	return s.prefix
}
