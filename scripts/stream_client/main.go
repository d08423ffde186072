// Minimal SSE client for exercising the synthesis stream endpoint from a
// terminal during development.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
)

var (
	baseURL  = flag.String("url", "http://localhost:8000", "server base URL")
	question = flag.String("question", "台南兩天一夜，想吃在地小吃", "trip question to send")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	body, err := json.Marshal(map[string]string{"question": *question})
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		*baseURL+"/api/v1/trips/stream", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("unexpected status: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			if eventType == "generation" {
				// Generation chunks are noisy; print just the text.
				var event struct {
					Data string `json:"data"`
				}
				if err := json.Unmarshal([]byte(data), &event); err == nil {
					fmt.Print(event.Data)
					continue
				}
			}
			fmt.Printf("\n[%s] %s\n", eventType, data)
			if eventType == "done" || eventType == "error" {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}
