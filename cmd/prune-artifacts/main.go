package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/store"
)

func main() {
	var (
		bucket    = flag.String("bucket", os.Getenv("S3_BUCKET"), "S3 bucket holding session artifacts")
		prefix    = flag.String("prefix", os.Getenv("S3_BUCKET_PREFIX"), "key prefix inside the bucket")
		region    = flag.String("region", os.Getenv("AWS_REGION"), "AWS region")
		endpoint  = flag.String("endpoint", os.Getenv("S3_ENDPOINT_URL"), "custom S3 endpoint (localstack/minio)")
		olderThan = flag.Duration("older-than", 30*24*time.Hour, "prune sessions whose newest artifact is older than this")
		dryRun    = flag.Bool("dry-run", true, "if true, only list stale sessions without deleting")
	)

	flag.Parse()

	if *bucket == "" {
		fmt.Println("Error: S3 bucket is required (use -bucket flag or S3_BUCKET env var)")
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx := context.Background()

	repo, err := store.NewReportsRepo(ctx, log, &store.S3Config{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Bucket:          *bucket,
		Prefix:          *prefix,
		Region:          *region,
		EndpointURL:     *endpoint,
	}, store.NewMetrics("botprobe"))
	if err != nil {
		log.Fatalf("Failed to create S3 store: %v", err)
	}

	artifacts, err := repo.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list artifacts: %v", err)
	}

	// Group by session. A session is stale when even its newest
	// artifact predates the cutoff.
	newest := make(map[string]time.Time)
	counts := make(map[string]int)

	for _, a := range artifacts {
		counts[a.SessionID]++

		if a.UpdatedAt.After(newest[a.SessionID]) {
			newest[a.SessionID] = a.UpdatedAt
		}
	}

	log.Infof("Found %d artifacts across %d sessions", len(artifacts), len(newest))

	cutoff := time.Now().Add(-*olderThan)

	var stale []string

	for id, ts := range newest {
		if ts.Before(cutoff) {
			stale = append(stale, id)
		}
	}

	sort.Strings(stale)

	for _, id := range stale {
		log.Infof("  - %s (%d artifacts, last touched %s)", id, counts[id], newest[id].Format(time.RFC3339))
	}

	if len(stale) == 0 {
		log.Info("Nothing to prune")

		return
	}

	if *dryRun {
		log.Info("=== DRY RUN MODE ===")
		log.Infof("%d sessions would be pruned. Run with -dry-run=false to delete them.", len(stale))

		return
	}

	pruned := 0

	for _, id := range stale {
		log.Infof("Pruning session %s", id)

		if err := repo.Purge(ctx, id); err != nil {
			log.Errorf("  -> Failed to purge: %v", err)

			continue
		}

		pruned++
	}

	log.Infof("=== PRUNE COMPLETE: %d of %d sessions removed ===", pruned, len(stale))
}
