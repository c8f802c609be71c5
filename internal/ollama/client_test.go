package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func tagsJSON(names ...string) []byte {
	models := make([]map[string]string, len(names))
	for i, n := range names {
		models[i] = map[string]string{"name": n}
	}
	b, _ := json.Marshal(map[string]any{"models": models})
	return b
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3.2:latest"))
	}))
	defer srv.Close()

	if !New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()
	if New(down.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = true for a closed server")
	}
}

func TestIsRunning_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = true on 503")
	}
}

func TestListAndHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3.2:latest", "qwen2.5:7b"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	models, err := c.Models(context.Background())
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(models) != 2 || models[0] != "llama3.2:latest" {
		t.Errorf("models = %v", models)
	}

	if !c.HasModel(context.Background(), "llama3.2") {
		t.Error("HasModel(llama3.2) = false, want true (tag suffix)")
	}
	if !c.HasModel(context.Background(), "qwen2.5:7b") {
		t.Error("HasModel(qwen2.5:7b) = false, want true")
	}
	if c.HasModel(context.Background(), "mistral") {
		t.Error("HasModel(mistral) = true, want false")
	}
}

func TestChat_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("stream = true, want false")
		}
		if req.Options != nil {
			t.Errorf("options = %v, want none for plain chat", req.Options)
		}
		if req.KeepAlive != "10m0s" {
			t.Errorf("keep_alive = %q, want 10m0s", req.KeepAlive)
		}
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "pong"}})
	}))
	defer srv.Close()

	got, err := New(srv.URL).Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "ping"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "pong" {
		t.Errorf("Chat = %q, want %q", got, "pong")
	}
}

func TestChat_JSONSchema(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: `{"title":"Yesterday"}`}})
	}))
	defer srv.Close()

	schema := &Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"title":               {Type: "string"},
			"alternative_queries": {Type: "array", Items: &SchemaProperty{Type: "string"}},
		},
		Required: []string{"title"},
	}
	got, err := New(srv.URL).Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "fix"}}, schema)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	format, ok := captured.Format.(map[string]any)
	if !ok {
		t.Fatalf("format = %T, want schema object", captured.Format)
	}
	if format["type"] != "object" {
		t.Errorf("format.type = %v", format["type"])
	}
	if captured.Options["temperature"] != float64(0) {
		t.Errorf("temperature = %v, want 0", captured.Options["temperature"])
	}
	if got != `{"title":"Yesterday"}` {
		t.Errorf("Chat = %q", got)
	}
}

func TestChat_ErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), "nope", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q", err)
	}
}

func TestPullModel_Progress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["name"] != "llama3.2" {
			t.Errorf("pull model = %v, want llama3.2", req["name"])
		}
		enc := json.NewEncoder(w)
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 500})
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 1000})
		enc.Encode(PullProgress{Status: "success"})
	}))
	defer srv.Close()

	var updates []PullProgress
	err := New(srv.URL).PullModel(context.Background(), "llama3.2", func(p PullProgress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if len(updates) != 3 || updates[2].Status != "success" {
		t.Errorf("updates = %+v", updates)
	}
}

func TestPullModel_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(PullProgress{Status: "pulling manifest"})
		enc.Encode(PullProgress{Error: "pull model manifest: file does not exist"})
	}))
	defer srv.Close()

	var updates int
	err := New(srv.URL).PullModel(context.Background(), "nope", func(PullProgress) { updates++ })
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("error = %v", err)
	}
	if updates != 1 {
		t.Errorf("updates = %d, want 1", updates)
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	if c := New(""); c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
}
