package nightscout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

func TestHashSecret(t *testing.T) {
	result := hashSecret("test")
	expected := "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"

	if result != expected {
		t.Errorf("hashSecret(\"test\") = %s, want %s", result, expected)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("https://test.example.com", "secret", "token", true)

	if client.baseURL != "https://test.example.com" {
		t.Errorf("baseURL = %s, want https://test.example.com", client.baseURL)
	}
	if client.apiSecret != "secret" {
		t.Errorf("apiSecret = %s, want secret", client.apiSecret)
	}
	if client.apiToken != "token" {
		t.Errorf("apiToken = %s, want token", client.apiToken)
	}
	if !client.useToken {
		t.Error("useToken should be true")
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient("https://test.example.com/", "", "", false)

	if client.baseURL != "https://test.example.com" {
		t.Errorf("baseURL = %s, should not have trailing slash", client.baseURL)
	}
}

func testRecords() []models.ExportRecord {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []models.ExportRecord{
		{Type: models.Sugars, ValueGrams: 3.3, Start: base, End: base},
		{Type: models.ExtendedCarbs, ValueGrams: 2.5, Start: base.Add(90 * time.Minute), End: base.Add(90 * time.Minute)},
	}
}

func TestClient_UploadTreatments(t *testing.T) {
	var received []models.Treatment

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/v1/treatments" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(received)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	stored, err := client.UploadTreatments("batch-1", testRecords())

	if err != nil {
		t.Fatalf("UploadTreatments() error = %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("Server received %d treatments, want 2", len(received))
	}
	if len(stored) != 2 {
		t.Errorf("Got %d stored treatments, want 2", len(stored))
	}

	first := received[0]
	if first.EventType != "Carb Correction" {
		t.Errorf("EventType = %s, want Carb Correction", first.EventType)
	}
	if first.Carbs != 3.3 {
		t.Errorf("Carbs = %v, want 3.3", first.Carbs)
	}
	if first.Identifier != "batch-1-000" || received[1].Identifier != "batch-1-001" {
		t.Errorf("Identifiers = %s, %s, want batch-1-000, batch-1-001", first.Identifier, received[1].Identifier)
	}
	if first.EnteredBy != models.EnteredBy {
		t.Errorf("EnteredBy = %s, want %s", first.EnteredBy, models.EnteredBy)
	}
	if first.CreatedAt != "2024-05-01T12:00:00Z" {
		t.Errorf("CreatedAt = %s, want 2024-05-01T12:00:00Z", first.CreatedAt)
	}
	if received[1].Notes != "Extended Carbs 2.5g" {
		t.Errorf("Notes = %s, want Extended Carbs 2.5g", received[1].Notes)
	}
}

func TestClient_UploadTreatments_SameTimeCombined(t *testing.T) {
	var received []models.Treatment

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	at := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)
	records := []models.ExportRecord{
		{Type: models.Sugars, ValueGrams: 1.2, Start: at, End: at},
		{Type: models.RegularCarbs, ValueGrams: 0.96, Start: at, End: at},
		{Type: models.RegularCarbs, ValueGrams: 0.96, Start: at.Add(10 * time.Minute), End: at.Add(10 * time.Minute)},
	}

	client := NewClient(server.URL, "", "", false)
	if _, err := client.UploadTreatments("batch-4", records); err != nil {
		t.Fatalf("UploadTreatments() error = %v", err)
	}

	if len(received) != 2 {
		t.Fatalf("Server received %d treatments, want 2", len(received))
	}
	seen := make(map[string]bool)
	total := 0.0
	for _, tr := range received {
		key := tr.CreatedAt + "|" + tr.EventType
		if seen[key] {
			t.Errorf("Two treatments share created_at and eventType %s", key)
		}
		seen[key] = true
		total += tr.Carbs
	}
	if total < 3.12-1e-9 || total > 3.12+1e-9 {
		t.Errorf("Uploaded carbs = %v, want 3.12", total)
	}
	if received[0].Identifier == received[1].Identifier {
		t.Errorf("Treatments share identifier %s", received[0].Identifier)
	}
}

func TestClient_UploadTreatments_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	stored, err := client.UploadTreatments("batch-2", testRecords())

	if err != nil {
		t.Fatalf("UploadTreatments() error = %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("Got %d treatments, want the 2 sent", len(stored))
	}
}

func TestClient_UploadTreatments_NoRecords(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "", "", false)
	stored, err := client.UploadTreatments("batch-3", nil)

	if err != nil {
		t.Errorf("UploadTreatments() error = %v, want nil", err)
	}
	if stored != nil {
		t.Errorf("UploadTreatments() = %v, want nil", stored)
	}
}

func TestClient_GetScheduledTreatments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/treatments" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("find[carbs][$gt]") != "0" {
			t.Errorf("Missing carbs filter in %s", r.URL.RawQuery)
		}

		treatments := []models.Treatment{
			{EventType: "Carb Correction", Carbs: 5, EnteredBy: models.EnteredBy, Date: time.Now().UnixMilli()},
			{EventType: "Meal Bolus", Carbs: 40, EnteredBy: "careportal", Date: time.Now().UnixMilli()},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(treatments)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	treatments, err := client.GetScheduledTreatments(6)

	if err != nil {
		t.Fatalf("GetScheduledTreatments() error = %v", err)
	}
	if len(treatments) != 1 {
		t.Fatalf("Got %d treatments, want 1", len(treatments))
	}
	if treatments[0].Carbs != 5 {
		t.Errorf("Carbs = %v, want 5", treatments[0].Carbs)
	}
}

func TestClient_GetStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}

		status := models.ServerStatus{
			Status:     "ok",
			Name:       "test-nightscout",
			Version:    "14.0.0",
			APIEnabled: true,
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	status, err := client.GetStatus()

	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("Status = %s, want ok", status.Status)
	}
	if status.Name != "test-nightscout" {
		t.Errorf("Name = %s, want test-nightscout", status.Name)
	}
}

func TestClient_TestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := models.ServerStatus{Status: "ok"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	err := client.TestConnection()

	if err != nil {
		t.Errorf("TestConnection() error = %v, want nil", err)
	}
}

func TestClient_AuthHeaders_Token(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "Bearer testtoken123" {
			t.Errorf("Authorization header = %s, want Bearer testtoken123", authHeader)
		}

		status := models.ServerStatus{Status: "ok"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "testtoken123", true)
	_, _ = client.GetStatus()
}

func TestClient_AuthHeaders_Secret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secretHeader := r.Header.Get("API-SECRET")
		expectedHash := hashSecret("mysecret")
		if secretHeader != expectedHash {
			t.Errorf("API-SECRET header = %s, want %s", secretHeader, expectedHash)
		}

		status := models.ServerStatus{Status: "ok"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}))
	defer server.Close()

	client := NewClient(server.URL, "mysecret", "", false)
	_, _ = client.GetStatus()
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Unauthorized"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", false)
	_, err := client.GetStatus()

	if err == nil {
		t.Error("Expected error for 401 response")
	}
}
