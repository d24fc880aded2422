// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command medexplain runs the medication assistant: `medexplain serve`
// starts the HTTP service, `medexplain ask` sends a one-shot question to
// a running instance.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "medexplain",
	Short: "MedExplain medication assistant",
	Long: `MedExplain answers plain-language questions about medications:
what a drug does, its side effects and warnings, typical dosage
guidance, and how two drugs interact.`,
}

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
