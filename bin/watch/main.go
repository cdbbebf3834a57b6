package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"visual-compare/internal/compare"
	"visual-compare/internal/convert"
	"visual-compare/internal/storage"
	"visual-compare/internal/verify"
)

// Entry is one comparison in the manifest. Actual paths must be disjoint
// across entries: artifact paths are derived from the actual basename, so
// concurrent entries sharing one would race.
type Entry struct {
	Expected  string  `json:"expected"`
	Actual    string  `json:"actual"`
	Tolerance float64 `json:"tolerance"`
}

func envOrDefaultValue[T any](key string, defaultValue T) T {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case string:
		return any(value).(T)
	case int:
		if intValue, err := strconv.Atoi(value); err == nil {
			return any(intValue).(T)
		}
	case bool:
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return any(boolValue).(T)
		}
	case time.Duration:
		if durationValue, err := time.ParseDuration(value); err == nil {
			return any(durationValue).(T)
		}
	}

	return defaultValue
}

func main() {
	_ = godotenv.Load()

	var manifest string
	var schedule string
	var concurrency int
	var timeout time.Duration
	var chromium bool
	var backend string
	var directory string
	var bucket string
	flag.StringVar(&manifest, "manifest", envOrDefaultValue("MANIFEST", "compare.json"), "Path to the comparison manifest")
	flag.StringVar(&schedule, "schedule", envOrDefaultValue("SCHEDULE", "@hourly"), "Cron schedule")
	flag.IntVar(&concurrency, "concurrency", envOrDefaultValue("CONCURRENCY", 4), "Concurrent comparisons per run")
	flag.DurationVar(&timeout, "timeout", envOrDefaultValue("CONVERT_TIMEOUT", time.Minute), "External tool timeout (0 disables)")
	flag.BoolVar(&chromium, "chromium", envOrDefaultValue("CHROMIUM_FALLBACK", false), "Rasterize SVG with headless Chromium when inkscape is missing")
	flag.StringVar(&backend, "storage", envOrDefaultValue("STORAGE", ""), "Publish failure artifacts to a storage backend (file or s3)")
	flag.StringVar(&directory, "directory", envOrDefaultValue("DIRECTORY", "/tmp"), "Directory for the file storage backend")
	flag.StringVar(&bucket, "bucket", envOrDefaultValue("BUCKET", ""), "Bucket for the s3 storage backend")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	var store storage.Store
	if backend != "" {
		var err error
		switch backend {
		case "file":
			store, err = storage.NewFileStore(context.Background(), storage.FileConfig{Directory: directory})
		case "s3":
			store, err = storage.NewS3Store(context.Background(), storage.S3Config{Bucket: bucket})
		default:
			log.Fatalf("Unknown storage backend: %s", backend)
		}
		if err != nil {
			log.Fatalf("Failed to create storage backend: %v", err)
		}
	}

	comparator := compare.New(
		convert.Detect(convert.Options{Timeout: timeout, ChromiumFallback: chromium}),
		verify.Detect(verify.Options{Timeout: timeout}),
	)
	comparator.InHarness = true

	run := func() {
		if err := runManifest(context.Background(), logger, comparator, store, manifest, concurrency); err != nil {
			logger.Error("manifest run failed", "error", err)
		}
	}

	run()

	c := cron.New()
	if _, err := c.AddFunc(schedule, run); err != nil {
		log.Fatalf("Invalid schedule %q: %v", schedule, err)
	}
	c.Run()
}

func runManifest(ctx context.Context, logger *slog.Logger, comparator *compare.Comparator, store storage.Store, manifest string, concurrency int) error {
	data, err := os.ReadFile(manifest)
	if err != nil {
		return xerrors.Errorf("failed to read manifest: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return xerrors.Errorf("failed to parse manifest: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, entry := range entries {
		g.Go(func() error {
			result, err := comparator.Compare(gctx, entry.Expected, entry.Actual, entry.Tolerance)
			if err != nil {
				return xerrors.Errorf("failed to compare %s: %w", entry.Actual, err)
			}
			if result == nil {
				logger.Info("match", "expected", entry.Expected, "actual", entry.Actual)
				return nil
			}

			var diffURL string
			if store != nil {
				diffURL, err = publishDiff(gctx, store, result)
				if err != nil {
					return xerrors.Errorf("failed to publish diff artifact for %s: %w", entry.Actual, err)
				}
			}
			logger.Warn("mismatch",
				"expected", result.Expected,
				"actual", result.Actual,
				"rms", result.RMS,
				"tolerance", result.Tolerance,
				"diff", result.Diff,
				"diffURL", diffURL,
			)
			return nil
		})
	}

	return g.Wait()
}

func publishDiff(ctx context.Context, store storage.Store, result *compare.Result) (string, error) {
	data, err := os.ReadFile(result.Diff)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(result.Expected + result.Actual))
	hash := fmt.Sprintf("%x", h.Sum(nil))[:16]
	timestamp := time.Now().Format("20060102150405")

	return store.Save(ctx, fmt.Sprintf("Compare/diff/%s/%s.png", hash, timestamp), data)
}
