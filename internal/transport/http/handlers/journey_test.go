package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"cdms/internal/app/server"
	"cdms/internal/platform/config"
	"cdms/internal/platform/db"
	"cdms/internal/platform/hashing"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		JWTTTL:             time.Hour,
		HashAlgorithm:      hashing.AlgorithmSHA256V1,
		Environment:        "test",
		MigrationsDir:      "../../../../migrations",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		EmailFrom:          "no-reply@test.local",
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
		pool.Close()
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := db.Seed(ctx, pool, cfg); err != nil {
		pool.Close()
		t.Fatalf("failed to seed: %v", err)
	}

	app, err := server.NewApp(cfg, pool, nil)
	if err != nil {
		pool.Close()
		t.Fatalf("failed to build app: %v", err)
	}

	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		pool.Close()
	})

	token := login(t, ts, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	return ts, token
}

func login(t *testing.T, ts *httptest.Server, email, password string) string {
	t.Helper()
	resp := doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, http.StatusOK)

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected token")
	}
	return payload.Token
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any, wantStatus int) envelope {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d, body %s", method, path, resp.StatusCode, wantStatus, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode envelope from %s %s: %v", method, path, err)
	}
	return env
}

func decode(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

type requestPayload struct {
	ID            string     `json:"id"`
	SequenceCode  string     `json:"sequenceCode"`
	Status        string     `json:"status"`
	ReceivedAt    time.Time  `json:"receivedAt"`
	DueAt         time.Time  `json:"dueAt"`
	ExtendedDueAt *time.Time `json:"extendedDueAt"`
	Extended      bool       `json:"extended"`
	PreviousHash  string     `json:"previousHash"`
	EntryHash     string     `json:"entryHash"`
}

type itemPayload struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	HoldReason       string `json:"holdReason"`
	VerificationHash string `json:"verificationHash"`
}

func TestErasureRequestJourney(t *testing.T) {
	ts, token := newTestServer(t)
	subject := fmt.Sprintf("subject-%d", time.Now().UnixNano())

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/requests/erasure", token, map[string]any{
		"subjectId":   subject,
		"subjectName": "Journey Tester",
		"grounds":     "CONSENT_WITHDRAWN",
		"detail":      "Subject withdrew consent for trial participation",
	}, http.StatusCreated)

	var request requestPayload
	decode(t, resp, &request)
	if request.Status != "received" {
		t.Fatalf("expected status received, got %s", request.Status)
	}
	if !strings.HasPrefix(request.SequenceCode, "ERA-") {
		t.Fatalf("expected ERA- sequence code, got %s", request.SequenceCode)
	}
	if got := request.DueAt.Sub(request.ReceivedAt); got != 30*24*time.Hour {
		t.Fatalf("expected due date 30 days after receipt, got %v", got)
	}
	if len(request.EntryHash) != 64 {
		t.Fatalf("expected 64 hex char entry hash, got %q", request.EntryHash)
	}
	// The link is into the per-kind chain: GENESIS only for the very first
	// erasure request this database has ever seen.
	if request.PreviousHash != "GENESIS" && len(request.PreviousHash) != 64 {
		t.Fatalf("expected chain link, got %q", request.PreviousHash)
	}

	base := "/api/v1/requests/erasure/" + request.ID

	resp = doJSON(t, ts, http.MethodPost, base+"/items", token, map[string]any{
		"recordTable":   "clinical_notes",
		"recordKey":     "note-" + subject,
		"category":      "GENERAL",
		"erasureMethod": "HARD_DELETE",
	}, http.StatusCreated)

	var item itemPayload
	decode(t, resp, &item)
	if item.Status != "pending" {
		t.Fatalf("expected item pending, got %s", item.Status)
	}

	resp = doJSON(t, ts, http.MethodPost, base+"/items/"+item.ID+"/review", token, map[string]any{
		"decision": "approved",
	}, http.StatusOK)
	decode(t, resp, &item)
	if item.Status != "approved" {
		t.Fatalf("expected item approved, got %s", item.Status)
	}

	resp = doJSON(t, ts, http.MethodPost, base+"/items/"+item.ID+"/apply", token, nil, http.StatusOK)
	decode(t, resp, &item)
	if item.Status != "executed" {
		t.Fatalf("expected item executed, got %s", item.Status)
	}
	if len(item.VerificationHash) != 64 {
		t.Fatalf("expected 64 hex char verification hash, got %q", item.VerificationHash)
	}

	resp = doJSON(t, ts, http.MethodPost, base+"/recipients", token, map[string]any{
		"name":     "Imaging Lab",
		"contact":  "privacy@lab.example",
		"required": true,
	}, http.StatusCreated)
	var recipient struct {
		ID string `json:"id"`
	}
	decode(t, resp, &recipient)

	// A required recipient that has not been notified blocks completion.
	resp = doJSON(t, ts, http.MethodPost, base+"/complete", token, nil, http.StatusConflict)
	if resp.Error == nil || resp.Error.Code != "state_error" {
		t.Fatalf("expected state_error, got %+v", resp.Error)
	}

	doJSON(t, ts, http.MethodPost, base+"/recipients/"+recipient.ID+"/notify", token, nil, http.StatusOK)

	resp = doJSON(t, ts, http.MethodPost, base+"/complete", token, nil, http.StatusOK)
	var completed struct {
		Request requestPayload `json:"request"`
		Items   struct {
			Executed int `json:"executed"`
		} `json:"items"`
	}
	decode(t, resp, &completed)
	if completed.Request.Status != "completed" {
		t.Fatalf("expected request completed, got %s", completed.Request.Status)
	}
	if completed.Items.Executed != 1 {
		t.Fatalf("expected 1 executed item, got %d", completed.Items.Executed)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/v1/ledger/request:"+request.ID+"/verify", token, nil, http.StatusOK)
	var verify struct {
		Valid   bool `json:"valid"`
		Entries int  `json:"entries"`
	}
	decode(t, resp, &verify)
	if !verify.Valid {
		t.Fatal("expected request chain to verify")
	}
	if verify.Entries < 5 {
		t.Fatalf("expected at least 5 chain entries, got %d", verify.Entries)
	}
}

func TestLegalHoldBlocksErasureItems(t *testing.T) {
	ts, token := newTestServer(t)
	subject := fmt.Sprintf("held-%d", time.Now().UnixNano())

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/holds", token, map[string]any{
		"holdType":   "LITIGATION",
		"subjectIds": []string{subject},
		"categories": []string{"HEALTH"},
		"reason":     "Pending litigation over adverse event records",
		"legalBasis": "Case 2026-CV-0412",
	}, http.StatusCreated)
	var hold struct {
		ID string `json:"id"`
	}
	decode(t, resp, &hold)

	resp = doJSON(t, ts, http.MethodPost, "/api/v1/requests/erasure", token, map[string]any{
		"subjectId": subject,
		"grounds":   "CONSENT_WITHDRAWN",
	}, http.StatusCreated)
	var request requestPayload
	decode(t, resp, &request)
	if request.Status != "legal_hold" {
		t.Fatalf("expected request opened under hold to be legal_hold, got %s", request.Status)
	}

	base := "/api/v1/requests/erasure/" + request.ID

	resp = doJSON(t, ts, http.MethodPost, base+"/items", token, map[string]any{
		"recordTable":   "lab_results",
		"recordKey":     "lab-" + subject,
		"category":      "HEALTH",
		"erasureMethod": "ANONYMIZE",
	}, http.StatusCreated)
	var item itemPayload
	decode(t, resp, &item)
	if item.Status != "on_hold" {
		t.Fatalf("expected item on_hold, got %s", item.Status)
	}
	if item.HoldReason == "" {
		t.Fatal("expected hold reason on parked item")
	}

	resp = doJSON(t, ts, http.MethodPost, base+"/items/"+item.ID+"/review", token, map[string]any{
		"decision": "approved",
	}, http.StatusConflict)
	if resp.Error == nil || resp.Error.Code != "legal_hold_active" {
		t.Fatalf("expected legal_hold_active, got %+v", resp.Error)
	}

	doJSON(t, ts, http.MethodPost, "/api/v1/holds/"+hold.ID+"/release", token, map[string]any{
		"reason": "Litigation settled, records no longer needed",
	}, http.StatusOK)

	resp = doJSON(t, ts, http.MethodPost, base+"/items/"+item.ID+"/review", token, map[string]any{
		"decision": "approved",
	}, http.StatusOK)
	decode(t, resp, &item)
	if item.Status != "approved" {
		t.Fatalf("expected item approved after release, got %s", item.Status)
	}
}

func TestDueDateExtensionIsSingleUse(t *testing.T) {
	ts, token := newTestServer(t)
	subject := fmt.Sprintf("extend-%d", time.Now().UnixNano())

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/requests/objection", token, map[string]any{
		"subjectId": subject,
		"grounds":   "LEGITIMATE_INTERESTS",
		"detail":    "Objects to profiling for cohort selection",
	}, http.StatusCreated)
	var request requestPayload
	decode(t, resp, &request)

	base := "/api/v1/requests/objection/" + request.ID

	resp = doJSON(t, ts, http.MethodPost, base+"/extend", token, map[string]any{
		"days":   30,
		"reason": "Request spans multiple trial sites",
	}, http.StatusOK)
	decode(t, resp, &request)
	if !request.Extended {
		t.Fatal("expected request to be marked extended")
	}
	if request.ExtendedDueAt == nil {
		t.Fatal("expected extended due date")
	}
	if got := request.ExtendedDueAt.Sub(request.DueAt); got != 30*24*time.Hour {
		t.Fatalf("expected extension measured from original due date, got %v", got)
	}

	resp = doJSON(t, ts, http.MethodPost, base+"/extend", token, map[string]any{
		"days":   10,
		"reason": "Second attempt must fail",
	}, http.StatusConflict)
	if resp.Error == nil || resp.Error.Code != "state_error" {
		t.Fatalf("expected state_error on second extension, got %+v", resp.Error)
	}
}

func TestDirectMarketingObjectionCannotBeRejected(t *testing.T) {
	ts, token := newTestServer(t)
	subject := fmt.Sprintf("marketing-%d", time.Now().UnixNano())

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/requests/objection", token, map[string]any{
		"subjectId": subject,
		"grounds":   "DIRECT_MARKETING",
	}, http.StatusCreated)
	var request requestPayload
	decode(t, resp, &request)

	base := "/api/v1/requests/objection/" + request.ID

	for _, verb := range []string{"reject", "override"} {
		resp = doJSON(t, ts, http.MethodPost, base+"/"+verb, token, map[string]any{
			"reason": "Marketing data is still needed for outreach",
		}, http.StatusConflict)
		if resp.Error == nil || resp.Error.Code != "absolute_right" {
			t.Fatalf("expected absolute_right on %s, got %+v", verb, resp.Error)
		}
	}
}

func TestUnknownRequestKindRejected(t *testing.T) {
	ts, token := newTestServer(t)

	resp := doJSON(t, ts, http.MethodGet, "/api/v1/requests/access", token, nil, http.StatusNotFound)
	if resp.Error == nil || resp.Error.Code != "unknown_kind" {
		t.Fatalf("expected unknown_kind, got %+v", resp.Error)
	}
}

func TestRetentionRecordLifecycle(t *testing.T) {
	ts, token := newTestServer(t)
	category := fmt.Sprintf("CAT-%d", time.Now().UnixNano())

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/retention/policies", token, map[string]any{
		"category":       category,
		"retentionDays":  365,
		"actionOnExpiry": "DELETE",
	}, http.StatusCreated)
	var policy struct {
		ID string `json:"id"`
	}
	decode(t, resp, &policy)

	resp = doJSON(t, ts, http.MethodPost, "/api/v1/retention/records", token, map[string]any{
		"policyId":    policy.ID,
		"category":    category,
		"recordTable": "consent_forms",
		"recordKey":   "form-" + category,
		"subjectId":   "subject-retention",
		"createdDate": "2020-01-01",
	}, http.StatusCreated)
	var record struct {
		ID             string    `json:"id"`
		ExpiryDate     time.Time `json:"expiryDate"`
		Status         string    `json:"status"`
		ExtensionCount int       `json:"extensionCount"`
		Hold           bool      `json:"hold"`
	}
	decode(t, resp, &record)
	if want := "2020-12-31"; record.ExpiryDate.Format("2006-01-02") != want {
		t.Fatalf("expected expiry %s, got %s", want, record.ExpiryDate.Format("2006-01-02"))
	}

	base := "/api/v1/retention/records/" + record.ID

	resp = doJSON(t, ts, http.MethodPost, base+"/extend", token, map[string]any{
		"days":   30,
		"reason": "Regulatory audit still open",
	}, http.StatusOK)
	decode(t, resp, &record)
	if record.ExtensionCount != 1 {
		t.Fatalf("expected extension count 1, got %d", record.ExtensionCount)
	}
	if want := "2021-01-30"; record.ExpiryDate.Format("2006-01-02") != want {
		t.Fatalf("expected extended expiry %s, got %s", want, record.ExpiryDate.Format("2006-01-02"))
	}

	doJSON(t, ts, http.MethodPost, base+"/hold", token, map[string]any{
		"reason": "Record subject to inquiry",
	}, http.StatusOK)

	resp = doJSON(t, ts, http.MethodPost, base+"/delete", token, nil, http.StatusConflict)
	if resp.Error == nil || resp.Error.Code != "legal_hold_active" {
		t.Fatalf("expected legal_hold_active on held delete, got %+v", resp.Error)
	}

	doJSON(t, ts, http.MethodPost, base+"/release-hold", token, nil, http.StatusOK)

	resp = doJSON(t, ts, http.MethodPost, base+"/delete", token, nil, http.StatusOK)
	decode(t, resp, &record)
	if record.Status != "deleted" {
		t.Fatalf("expected record deleted, got %s", record.Status)
	}

	// Terminal records cannot be actioned twice.
	resp = doJSON(t, ts, http.MethodPost, base+"/anonymize", token, nil, http.StatusConflict)
	if resp.Error == nil {
		t.Fatal("expected error on second action")
	}
}
