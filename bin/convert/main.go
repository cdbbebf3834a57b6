package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"visual-compare/internal/convert"
)

func envOrDefaultValue[T any](key string, defaultValue T) T {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case string:
		return any(value).(T)
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

	var timeout time.Duration
	var chromium bool
	var list bool
	flag.DurationVar(&timeout, "timeout", envOrDefaultValue("CONVERT_TIMEOUT", time.Minute), "External tool timeout (0 disables)")
	flag.BoolVar(&chromium, "chromium", envOrDefaultValue("CHROMIUM_FALLBACK", false), "Rasterize SVG with headless Chromium when inkscape is missing")
	flag.BoolVar(&list, "list", false, "List the comparable formats on this system and exit")

	flag.Parse()

	tools := convert.Detect(convert.Options{Timeout: timeout, ChromiumFallback: chromium})

	if list {
		fmt.Println(strings.Join(tools.Comparable(), "\n"))
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		log.Fatalf("file not specified")
	}

	out, err := tools.Convert(context.Background(), args[0])
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	fmt.Println(out)
}
