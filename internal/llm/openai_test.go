package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rcliao/guardia-ai/internal/model"
)

type capturedRequest struct {
	Model          string `json:"model"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, status int, content string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got != nil {
			json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleRecord() model.PatientRecord {
	r := model.NewRecord()
	r.Name = "Juan Pérez"
	r.Age = "54"
	r.ChiefComplaint = "Dolor torácico"
	r.Vitals.BP = "150/90"
	return r
}

func TestAnalyzeParsesJSON(t *testing.T) {
	body := `{"syndromeName":"SCA","triageLevel":"Rojo","reasoning":"r","differentialDiagnoses":["a","b","c"],"immediateManagement":["1","2","3","4","5"],"recommendedExams":["ECG"],"redFlags":["x"]}`
	var req capturedRequest
	srv := newTestServer(t, http.StatusOK, body, &req)
	c := NewOpenAIClient(Options{APIKey: "k", BaseURL: srv.URL, Model: "test-model"})

	a, err := c.Analyze(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.SyndromeName != "SCA" || len(a.ImmediateManagement) != 5 {
		t.Errorf("unexpected analysis %+v", a)
	}
	if req.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", req.Model)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Error("expected JSON response format")
	}
	if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "Dolor torácico") {
		t.Errorf("prompt should carry the chief complaint: %+v", req.Messages)
	}
}

func TestAnalyzeRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "no soy json", nil)
	c := NewOpenAIClient(Options{BaseURL: srv.URL})

	if _, err := c.Analyze(context.Background(), sampleRecord()); err == nil {
		t.Error("expected decode error")
	}
}

func TestAnalyzeSurfacesAPIError(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, "", nil)
	c := NewOpenAIClient(Options{BaseURL: srv.URL})

	_, err := c.Analyze(context.Background(), sampleRecord())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestGenerateNote(t *testing.T) {
	var req capturedRequest
	srv := newTestServer(t, http.StatusOK, "Historia clínica", &req)
	c := NewOpenAIClient(Options{BaseURL: srv.URL})

	note, err := c.GenerateNote(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("note: %v", err)
	}
	if note != "Historia clínica" {
		t.Errorf("unexpected note %q", note)
	}
	if !strings.Contains(req.Messages[0].Content, `"chiefComplaint": "Dolor torácico"`) {
		t.Error("note prompt should embed the record as JSON")
	}
}

func TestChatMapsRolesAndSkipsErrorTurns(t *testing.T) {
	var req capturedRequest
	srv := newTestServer(t, http.StatusOK, "respuesta", &req)
	c := NewOpenAIClient(Options{BaseURL: srv.URL})

	history := []model.ChatMessage{
		{Role: model.RoleModel, Text: "Listo."},
		{Role: model.RoleUser, Text: "¿Dosis de AAS?"},
		{Role: model.RoleModel, Text: "Error de conexión", Error: true},
		{Role: model.RoleUser, Text: "¿Y clopidogrel?"},
	}
	reply, err := c.Chat(context.Background(), sampleRecord(), history)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "respuesta" {
		t.Errorf("unexpected reply %q", reply)
	}

	roles := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		roles[i] = m.Role
	}
	if strings.Join(roles, ",") != "system,assistant,user,user" {
		t.Errorf("unexpected roles %v", roles)
	}
	if !strings.Contains(req.Messages[0].Content, "Juan Pérez") {
		t.Error("system prompt should carry the patient record")
	}
}

func TestParseAnalysisStripsFence(t *testing.T) {
	a, err := parseAnalysis("```json\n{\"syndromeName\":\"SCA\",\"triageLevel\":\"Rojo\"}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.SyndromeName != "SCA" {
		t.Errorf("unexpected %+v", a)
	}
	if _, err := parseAnalysis(`{}`); err == nil {
		t.Error("expected error for empty analysis")
	}
}
