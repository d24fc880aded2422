// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question against a running instance",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAskCommand,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "session ID for follow-up questions")
}

type askRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type askResponse struct {
	Answer        string             `json:"answer"`
	Confidence    string             `json:"confidence"`
	Sources       []datatypes.Source `json:"sources,omitempty"`
	SafetyWarning bool               `json:"safety_warning"`
	Disclaimer    string             `json:"disclaimer"`
	SessionID     string             `json:"session_id"`
}

func getAssistantBaseURL() string {
	if v := os.Getenv("MEDEXPLAIN_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:8080"
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	body, err := json.Marshal(askRequest{Query: question, SessionID: askSessionID})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(getAssistantBaseURL()+"/v1/assistant/query", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server returned %d: %s", resp.StatusCode, string(raw))
	}

	var answer askResponse
	if err := json.Unmarshal(raw, &answer); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}

	fmt.Printf("\nAnswer (%s confidence):\n%s\n", answer.Confidence, answer.Answer)
	if answer.SafetyWarning {
		fmt.Println("\n[!] This answer contains safety-relevant information.")
	}
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, source := range answer.Sources {
			fmt.Printf("%d. %s - %s (%s)\n", i+1, source.Drug, source.Section, source.URL)
		}
	}
	if answer.Disclaimer != "" {
		fmt.Printf("\n%s\n", answer.Disclaimer)
	}
	fmt.Printf("\nSession: %s (pass --session %s to follow up)\n", answer.SessionID, answer.SessionID)
}
