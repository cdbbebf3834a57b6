package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"visual-compare/internal/compare"
	"visual-compare/internal/convert"
	"visual-compare/internal/storage"
	"visual-compare/internal/verify"
)

type CompareOutput struct {
	RMS      float64 `json:"rms"`
	Expected string  `json:"expected"`
	Actual   string  `json:"actual"`
	Diff     string  `json:"diff"`
	DiffURL  string  `json:"diffURL,omitempty"`
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
	case float64:
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return any(floatValue).(T)
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

	var tolerance float64
	var harness bool
	var timeout time.Duration
	var chromium bool
	var xmllint bool
	var backend string
	var directory string
	var bucket string
	flag.Float64Var(&tolerance, "tolerance", envOrDefaultValue("TOLERANCE", 1e-3), "Comparison tolerance")
	flag.BoolVar(&harness, "harness", envOrDefaultValue("HARNESS", false), "Harness mode: keep an expected-image copy and emit JSON on mismatch")
	flag.DurationVar(&timeout, "timeout", envOrDefaultValue("CONVERT_TIMEOUT", time.Minute), "External tool timeout (0 disables)")
	flag.BoolVar(&chromium, "chromium", envOrDefaultValue("CHROMIUM_FALLBACK", false), "Rasterize SVG with headless Chromium when inkscape is missing")
	flag.BoolVar(&xmllint, "xmllint", envOrDefaultValue("VERIFY_SVG", false), "Validate SVG inputs with xmllint")
	flag.StringVar(&backend, "storage", envOrDefaultValue("STORAGE", ""), "Publish failure artifacts to a storage backend (file or s3)")
	flag.StringVar(&directory, "directory", envOrDefaultValue("DIRECTORY", "/tmp"), "Directory for the file storage backend")
	flag.StringVar(&bucket, "bucket", envOrDefaultValue("BUCKET", ""), "Bucket for the s3 storage backend")

	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		log.Fatalf("expected, actual not specified")
	}
	expected := args[0]
	actual := args[1]

	ctx := context.Background()

	comparator := compare.New(
		convert.Detect(convert.Options{Timeout: timeout, ChromiumFallback: chromium}),
		verify.Detect(verify.Options{Timeout: timeout, EnableXMLLint: xmllint}),
	)
	comparator.InHarness = harness

	result, err := comparator.Compare(ctx, expected, actual, tolerance)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}
	if result == nil {
		return
	}

	var diffURL string
	if backend != "" {
		diffURL, err = publishDiff(ctx, backend, directory, bucket, result)
		if err != nil {
			log.Fatalf("Failed to publish diff artifact: %v", err)
		}
	}

	if harness {
		if err := json.NewEncoder(os.Stdout).Encode(CompareOutput{
			RMS:      result.RMS,
			Expected: result.Expected,
			Actual:   result.Actual,
			Diff:     result.Diff,
			DiffURL:  diffURL,
		}); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
	} else {
		fmt.Fprint(os.Stderr, result.Message())
	}
	os.Exit(1)
}

func publishDiff(ctx context.Context, backend string, directory string, bucket string, result *compare.Result) (string, error) {
	var store storage.Store
	var err error
	switch backend {
	case "file":
		store, err = storage.NewFileStore(ctx, storage.FileConfig{Directory: directory})
	case "s3":
		store, err = storage.NewS3Store(ctx, storage.S3Config{Bucket: bucket})
	default:
		return "", fmt.Errorf("unknown storage backend: %s", backend)
	}
	if err != nil {
		return "", err
	}

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
