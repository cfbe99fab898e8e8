// compensation-probe is a stub history and initiator service for poking
// misfireguard locally. It answers batch history queries with a canned last
// execution time (LAST_EXECUTION, RFC3339, default "10 minutes ago") and
// records every trigger request it receives.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type historyRequest struct {
	PipelineIDs []string `json:"pipeline_ids"`
	Count       int      `json:"count"`
}

type executionRecord struct {
	PipelineID string     `json:"pipeline_id"`
	StartTime  *time.Time `json:"start_time"`
}

type triggerLog struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Body      string `json:"body"`
}

type stats struct {
	Triggers     int64        `json:"triggers"`
	LastTriggers []triggerLog `json:"last_triggers"`
	Since        string       `json:"since"`
}

var (
	mu            sync.Mutex
	triggers      int64
	lastTriggers  []triggerLog
	since         time.Time
	lastExecution time.Time
	maxStored     = 50
)

func main() {
	since = time.Now().UTC()
	lastExecution = since.Add(-10 * time.Minute)

	if v := os.Getenv("LAST_EXECUTION"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			log.Fatalf("invalid LAST_EXECUTION %q: %v", v, err)
		}
		lastExecution = t
	}

	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/executions/latest", historyHandler)
	http.HandleFunc("/pipelines/", triggerHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		triggers = 0
		lastTriggers = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("compensation-probe listening on %s (last_execution=%s)",
		addr, lastExecution.Format(time.RFC3339))
	log.Fatal(http.ListenAndServe(addr, nil))
}

func historyHandler(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"error":%q}`, err.Error())
		return
	}
	defer r.Body.Close()

	mu.Lock()
	t := lastExecution
	mu.Unlock()

	records := make([]executionRecord, 0, len(req.PipelineIDs))
	for _, id := range req.PipelineIDs {
		records = append(records, executionRecord{PipelineID: id, StartTime: &t})
	}

	log.Printf("history query for %d pipelines", len(req.PipelineIDs))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func triggerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/trigger") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body strings.Builder
	if r.Body != nil {
		buf := make([]byte, 4096)
		for {
			n, err := r.Body.Read(buf)
			body.Write(buf[:n])
			if err != nil {
				break
			}
		}
		r.Body.Close()
	}

	entry := triggerLog{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Path:      r.URL.Path,
		Body:      body.String(),
	}

	mu.Lock()
	triggers++
	lastTriggers = append(lastTriggers, entry)
	if len(lastTriggers) > maxStored {
		lastTriggers = lastTriggers[len(lastTriggers)-maxStored:]
	}
	current := triggers
	mu.Unlock()

	log.Printf("trigger received #%d: %s", current, entry.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"accepted":%d}`, current)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Triggers:     triggers,
		LastTriggers: lastTriggers,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
