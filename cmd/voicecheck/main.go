// Command voicecheck loads a ZIP-of-NPY voice bank and reports which
// voices parsed successfully, for validating a new voices blob before
// deploying it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/aldengreen/kokoro-live-tts/internal/voicebank"
)

func main() {
	path := flag.String("voices", os.Getenv("VOICES_PATH"), "path to the ZIP-of-NPY voice bank blob")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: voicecheck --voices /app/voices-v1.0.bin")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	bank, err := voicebank.Load(*path)
	if err != nil {
		slog.Error("voice bank load failed", "path", *path, "error", err)
		os.Exit(1)
	}

	voices := bank.Voices()
	sort.Strings(voices)

	fmt.Printf("loaded %d voice(s) from %s\n", len(voices), *path)
	for _, v := range voices {
		style, err := bank.Get(v, 0)
		if err != nil {
			fmt.Printf("  %-20s  error: %v\n", v, err)
			continue
		}
		fmt.Printf("  %-20s  %d rows x %d cols\n", v, voicebank.Rows, len(style))
	}
}
