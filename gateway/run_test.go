// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rampart/platform/gateway/injection"
)

func TestBuildInjectionDetectorFastMode(t *testing.T) {
	cfg := &Config{
		PromptInjectionDetector: "hybrid",
		PromptInjectionEndpoint: "http://localhost:9999/classify",
		PromptInjectionFastMode: true,
	}
	if _, ok := buildInjectionDetector(cfg).(*injection.RegexDetector); !ok {
		t.Fatal("fast mode did not select the regex pipeline")
	}
}

func TestBuildInjectionDetectorWithoutEndpoint(t *testing.T) {
	cfg := &Config{PromptInjectionDetector: "hybrid"}
	if _, ok := buildInjectionDetector(cfg).(*injection.RegexDetector); !ok {
		t.Fatal("missing endpoint did not degrade to the regex pipeline")
	}
}

func TestBuildInjectionDetectorRuntime(t *testing.T) {
	tests := []struct {
		name    string
		useONNX bool
		want    string
	}{
		{"onnx runtime", true, "onnx"},
		{"torch runtime", false, "torch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Inputs  []string `json:"inputs"`
				Runtime string   `json:"runtime"`
			}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode classify request: %v", err)
				}
				fmt.Fprint(w, `[[{"label":"SAFE","score":0.99}]]`)
			}))
			defer srv.Close()

			cfg := &Config{
				// Deep-only mode sends every input to the classifier.
				PromptInjectionDetector:  "deberta",
				PromptInjectionEndpoint:  srv.URL,
				PromptInjectionUseONNX:   tt.useONNX,
				PromptInjectionThreshold: 0.75,
			}
			detector := buildInjectionDetector(cfg)
			detector.Detect(context.Background(), "what is the weather today")

			if got.Runtime != tt.want {
				t.Errorf("runtime = %q, want %q", got.Runtime, tt.want)
			}
		})
	}
}
