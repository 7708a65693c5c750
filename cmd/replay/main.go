// Package main analyzes a shadow prediction log: it compares candidate-model
// verdicts with the production results recorded alongside them and prints an
// agreement report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"solana-mev-engine/internal/shadow"
	filestore "solana-mev-engine/internal/storage/file"
)

func main() {
	// Parse flags
	logPath := flag.String("shadow-log", "", "Shadow log JSONL path (required)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	maxDisagreements := flag.Int("max-disagreements", 20, "Max disagreements to print")

	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	if *logPath == "" {
		logger.Fatal("--shadow-log is required")
	}

	preds, err := filestore.ReadShadowLog(*logPath)
	if err != nil {
		logger.Fatalf("read shadow log: %v", err)
	}

	report := shadow.Analyze(preds)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Fatalf("encode report: %v", err)
		}
		return
	}

	fmt.Printf("Shadow log: %s\n", *logPath)
	fmt.Printf("Records:             %d\n", report.Total)
	fmt.Printf("With production:     %d\n", report.WithProduction)
	fmt.Printf("Errors:              %d\n", report.Errors)
	fmt.Printf("Verdict agreement:   %.2f%%\n", report.VerdictAgreement*100)
	fmt.Printf("Mean |score delta|:  %.4f\n", report.MeanAbsScoreDelta)
	fmt.Printf("Max |score delta|:   %.4f\n", report.MaxAbsScoreDelta)
	fmt.Printf("Mean latency:        %dus\n", report.MeanLatencyUs)
	fmt.Printf("P99 latency:         %dus\n", report.P99LatencyUs)

	if len(report.Disagreements) > 0 {
		fmt.Printf("\nDisagreements (%d total):\n", len(report.Disagreements))
		for i, d := range report.Disagreements {
			if i >= *maxDisagreements {
				fmt.Printf("  ... and %d more\n", len(report.Disagreements)-i)
				break
			}
			fmt.Printf("  %s shadow=%.3f (mev=%v) production=%.3f (mev=%v)\n",
				d.Signature, d.ShadowScore, d.ShadowIsMev, d.ProductionScore, d.ProductionIsMev)
		}
	}
}
