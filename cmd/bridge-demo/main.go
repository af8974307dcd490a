// bridge-demo runs a small HTTP server over a storebridge instance backed
// by an in-memory tier, exercising save, query, delete, observation, and
// the change-event outbox end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ripplekit/storebridge/pkg/storebridge"
)

var bridge *storebridge.Bridge

func main() {
	config := storebridge.DefaultConfig()
	config.Outbox.Enabled = true

	// To run against a real tier chain instead of memory, configure
	// the tiers and drop Memory, e.g.:
	//
	//	config.Tiers.Memory = false
	//	config.Tiers.Local = "bridge-demo.db"
	//	config.Tiers.Async = &backend.RedisConfig{Addr: "localhost:6379"}

	var err error
	bridge, err = storebridge.New(config,
		storebridge.WithChangeConsumer(logChangeEvent),
	)
	if err != nil {
		log.Fatalf("Failed to create bridge: %v", err)
	}
	defer bridge.Close()

	ctx := context.Background()
	if err := bridge.Setup(ctx, demoSchema()); err != nil {
		log.Fatalf("Failed to set up bridge: %v", err)
	}
	log.Printf("Bridge ready on tier %q", bridge.Tier())

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/todos", todosHandler)
	http.HandleFunc("/metrics", metricsHandler)

	log.Println("API endpoints:")
	log.Println("  POST   /todos    - Create a todo {title, isCompleted, priority}")
	log.Println("  GET    /todos    - List todos (?completed=true|false, ?maxPriority=N)")
	log.Println("  DELETE /todos    - Delete completed todos")
	log.Println("  GET    /metrics  - Bridge metrics snapshot")
	log.Println("  GET    /health   - Health check")

	port := ":8080"
	log.Printf("Starting HTTP server on %s", port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := http.ListenAndServe(port, nil); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-sigChan
	log.Println("Received shutdown signal, stopping...")
}

// demoSchema declares a single sync-tracked Todo model.
func demoSchema() *storebridge.SchemaDescription {
	return &storebridge.SchemaDescription{
		Version:   "1",
		Namespace: "demo",
		Syncable:  true,
		Models: map[string]storebridge.ModelDefinition{
			"Todo": {
				Name: "Todo",
				Fields: map[string]storebridge.FieldDescriptor{
					"title":       {Type: "String", Required: true},
					"isCompleted": {Type: "Boolean", Required: true},
					"priority":    {Type: "Int"},
				},
			},
		},
	}
}

func logChangeEvent(ctx context.Context, event *storebridge.ChangeEvent) error {
	log.Printf("[OUTBOX] %s %s id=%s", event.Kind, event.Model, event.RecordID)
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"tier":      bridge.Tier(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bridge.Metrics())
}

func todosHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		createTodo(w, r)
	case http.MethodGet:
		listTodos(w, r)
	case http.MethodDelete:
		deleteCompleted(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func createTodo(w http.ResponseWriter, r *http.Request) {
	var todo storebridge.Record
	if err := json.NewDecoder(r.Body).Decode(&todo); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if _, ok := todo["title"]; !ok {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if _, ok := todo["isCompleted"]; !ok {
		todo["isCompleted"] = false
	}

	saved, op, err := bridge.Save(r.Context(), "Todo", todo, nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to save todo: %v", err), http.StatusInternalServerError)
		return
	}
	status := http.StatusCreated
	if op == storebridge.OpUpdate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"operation": op,
		"todo":      saved,
	})
}

func listTodos(w http.ResponseWriter, r *http.Request) {
	var preds []*storebridge.Predicate
	if v := r.URL.Query().Get("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "completed must be true or false", http.StatusBadRequest)
			return
		}
		preds = append(preds, storebridge.Field("isCompleted", "eq", completed))
	}
	if v := r.URL.Query().Get("maxPriority"); v != "" {
		max, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "maxPriority must be a number", http.StatusBadRequest)
			return
		}
		preds = append(preds, storebridge.Field("priority", "le", max))
	}

	var pred *storebridge.Predicate
	switch len(preds) {
	case 0:
	case 1:
		pred = preds[0]
	default:
		pred = storebridge.And(preds...)
	}

	todos, err := bridge.Query(r.Context(), "Todo", pred, nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("Query failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(todos),
		"todos": todos,
	})
}

func deleteCompleted(w http.ResponseWriter, r *http.Request) {
	deleted, _, err := bridge.Delete(r.Context(), "Todo",
		storebridge.Field("isCompleted", "eq", true))
	if err != nil {
		http.Error(w, fmt.Sprintf("Delete failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": len(deleted),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
