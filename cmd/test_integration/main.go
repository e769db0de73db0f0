package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func main() {
	if v := os.Getenv("NEOBATCH_BASE_URL"); v != "" {
		baseURL = v
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	run := fmt.Sprintf("run-%d", time.Now().Unix())

	// 1. Write entities
	fmt.Println("1. Writing Entities...")
	alice := map[string]any{"label": "Person", "name": "Alice", "run": run}
	bob := map[string]any{"label": "Person", "name": "Bob", "run": run}
	entities := []map[string]any{
		alice,
		bob,
		alice,
		{"relation": "KNOWS", "start": alice, "end": bob},
	}
	if _, ok := sendRequest("POST", "/entities", entities); !ok {
		fmt.Println("FAILED: Write entities")
		os.Exit(1)
	}
	fmt.Println("PASSED: Write entities")

	// 2. Flush
	fmt.Println("2. Flushing...")
	if _, ok := sendRequest("POST", "/flush", nil); !ok {
		fmt.Println("FAILED: Flush")
		os.Exit(1)
	}
	fmt.Println("PASSED: Flush")

	// 3. Status
	fmt.Println("3. Checking Status...")
	body, ok := sendRequest("GET", "/status", nil)
	if !ok {
		fmt.Println("FAILED: Status")
		os.Exit(1)
	}
	var status struct {
		Buffered  int `json:"buffered"`
		LastCycle *struct {
			Nodes      int    `json:"nodes"`
			Relations  int    `json:"relations"`
			Duplicates int    `json:"duplicates"`
			Error      string `json:"error"`
		} `json:"last_cycle"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		fmt.Printf("FAILED: Status decode: %v\n", err)
		os.Exit(1)
	}
	if status.Buffered != 0 || status.LastCycle == nil || status.LastCycle.Error != "" {
		fmt.Printf("FAILED: unexpected status %s\n", string(body))
		os.Exit(1)
	}
	if status.LastCycle.Nodes != 2 || status.LastCycle.Relations != 1 || status.LastCycle.Duplicates != 1 {
		fmt.Printf("FAILED: unexpected cycle %s\n", string(body))
		os.Exit(1)
	}
	fmt.Println("PASSED: Status")
}

func sendRequest(method, endpoint string, payload interface{}) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}

	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}
