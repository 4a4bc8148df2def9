package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
	"testing"

	"collections-backend/db"
	"collections-backend/model"
	"collections-backend/strategy"

	"github.com/aws/aws-lambda-go/events"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupHandlers(t *testing.T) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	wireServices(database, nil)
}

func invoke(t *testing.T, method, path, body string, query map[string]string) events.APIGatewayProxyResponse {
	t.Helper()
	resp, err := apiGatewayHandler(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            method,
		Path:                  path,
		Body:                  body,
		QueryStringParameters: query,
	})
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp events.APIGatewayProxyResponse, out any) {
	t.Helper()
	if err := json.Unmarshal([]byte(resp.Body), out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body, err)
	}
}

func createUserViaAPI(t *testing.T, name string, details map[string]any) uint {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"name": name, "details": details})
	resp := invoke(t, "POST", "/ingestion/add-user", string(payload), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("add-user returned %d: %s", resp.StatusCode, resp.Body)
	}
	var user model.User
	decodeBody(t, resp, &user)
	return user.ID
}

func TestLiveness(t *testing.T) {
	setupHandlers(t)
	resp := invoke(t, "GET", "/", "", nil)
	if resp.StatusCode != 200 || !strings.Contains(resp.Body, "running") {
		t.Errorf("liveness = %d %s", resp.StatusCode, resp.Body)
	}
}

func TestUnknownRoute(t *testing.T) {
	setupHandlers(t)
	resp := invoke(t, "GET", "/nope", "", nil)
	if resp.StatusCode != 404 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStrategyRoundtripReturnsEnrichedTimeline(t *testing.T) {
	setupHandlers(t)
	userID := createUserViaAPI(t, "Alice", map[string]any{
		"amount_owed":       1500,
		"preferred_contact": "email",
		"contact_methods": []map[string]any{
			{"method": "email", "value": "alice@example.com", "label": "Email 1", "is_preferred": true},
		},
	})

	submitted := map[string]any{
		"timeline": []map[string]any{
			{
				"timing": "",
				"blocks": []map[string]any{
					{"source": "email", "tone": "friendly", "content": "hello"},
				},
			},
		},
	}
	body, _ := json.Marshal(submitted)
	resp := invoke(t, "POST", fmt.Sprintf("/strategies/%d", userID), string(body), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("create strategy returned %d: %s", resp.StatusCode, resp.Body)
	}

	get := invoke(t, "GET", fmt.Sprintf("/strategies/%d", userID), "", nil)
	if get.StatusCode != 200 {
		t.Fatalf("get strategy returned %d: %s", get.StatusCode, get.Body)
	}

	var stored struct {
		Timeline  []strategy.TimelineColumn `json:"timeline"`
		Executed  bool                      `json:"executed"`
		OwnerType string                    `json:"owner_type"`
	}
	decodeBody(t, get, &stored)

	if stored.OwnerType != "user" {
		t.Errorf("owner_type = %q", stored.OwnerType)
	}
	if stored.Executed {
		t.Error("new strategy should not be executed")
	}
	if len(stored.Timeline) != 1 {
		t.Fatalf("timeline columns = %d", len(stored.Timeline))
	}
	col := stored.Timeline[0]
	if col.Timing != "Unscheduled" {
		t.Errorf("blank timing should be defaulted, got %q", col.Timing)
	}
	b := col.Blocks[0]
	if b.BlockType != strategy.BlockTypeAction {
		t.Errorf("block_type = %q", b.BlockType)
	}
	if b.ContactMethodDetail != "alice@example.com" {
		t.Errorf("contact_method_detail = %q", b.ContactMethodDetail)
	}
	if b.PreferredContact != "email" {
		t.Errorf("preferred_contact = %q", b.PreferredContact)
	}
}

func TestStrategyCreateRejectsBadBlocks(t *testing.T) {
	setupHandlers(t)
	userID := createUserViaAPI(t, "Alice", nil)

	body := `{"timeline":[{"timing":"Day 1","blocks":[{"block_type":"decision","source":"email"}]}]}`
	resp := invoke(t, "POST", fmt.Sprintf("/strategies/%d", userID), body, nil)
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d: %s", resp.StatusCode, resp.Body)
	}

	var out struct {
		Error      string               `json:"error"`
		Violations []strategy.Violation `json:"violations"`
	}
	decodeBody(t, resp, &out)
	if out.Error != "Invalid strategy timeline" || len(out.Violations) == 0 {
		t.Errorf("unexpected violation payload: %s", resp.Body)
	}
}

func TestStrategyMissingOwner(t *testing.T) {
	setupHandlers(t)

	resp := invoke(t, "POST", "/strategies/999", `{"timeline":[]}`, nil)
	if resp.StatusCode != 404 || !strings.Contains(resp.Body, "User not found") {
		t.Errorf("user: %d %s", resp.StatusCode, resp.Body)
	}

	resp = invoke(t, "POST", "/strategies/999", `{"timeline":[]}`, map[string]string{"owner_type": "group"})
	if resp.StatusCode != 404 || !strings.Contains(resp.Body, "Group not found") {
		t.Errorf("group: %d %s", resp.StatusCode, resp.Body)
	}

	get := invoke(t, "GET", "/strategies/999", "", nil)
	if get.StatusCode != 200 || strings.TrimSpace(get.Body) != "null" {
		t.Errorf("get for ownerless id = %d %q", get.StatusCode, get.Body)
	}
}

func TestStrategyRejectsBadOwnerType(t *testing.T) {
	setupHandlers(t)
	resp := invoke(t, "GET", "/strategies/1", "", map[string]string{"owner_type": "team"})
	if resp.StatusCode != 400 {
		t.Errorf("status = %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestExecuteStrategyUpdatesUserStatus(t *testing.T) {
	setupHandlers(t)
	userID := createUserViaAPI(t, "Alice", map[string]any{"amount_owed": 100})

	execPath := fmt.Sprintf("/strategies/%d/execute", userID)
	resp := invoke(t, "POST", execPath, "", nil)
	if resp.StatusCode != 404 || !strings.Contains(resp.Body, "No strategy found") {
		t.Fatalf("execute before create = %d %s", resp.StatusCode, resp.Body)
	}

	invoke(t, "POST", fmt.Sprintf("/strategies/%d/ai-generate", userID), "", nil)

	resp = invoke(t, "POST", execPath, "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("execute = %d %s", resp.StatusCode, resp.Body)
	}
	var out struct {
		Executed   bool    `json:"executed"`
		UserStatus *string `json:"user_status"`
	}
	decodeBody(t, resp, &out)
	if !out.Executed {
		t.Error("strategy not executed")
	}
	if out.UserStatus == nil || *out.UserStatus != model.StatusOngoing {
		t.Errorf("user_status = %v, want ongoing while debt remains", out.UserStatus)
	}
}

func TestExecuteStrategyFinishesSettledUser(t *testing.T) {
	setupHandlers(t)
	userID := createUserViaAPI(t, "Alice", map[string]any{"amount_owed": 0})

	invoke(t, "POST", fmt.Sprintf("/strategies/%d/ai-generate", userID), "", nil)
	resp := invoke(t, "POST", fmt.Sprintf("/strategies/%d/execute", userID), "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("execute = %d %s", resp.StatusCode, resp.Body)
	}
	var out struct {
		UserStatus *string `json:"user_status"`
	}
	decodeBody(t, resp, &out)
	if out.UserStatus == nil || *out.UserStatus != model.StatusFinished {
		t.Errorf("user_status = %v, want finished", out.UserStatus)
	}
}

func TestAIGenerateFallsBackToTemplate(t *testing.T) {
	// No planner key is configured, so generation must fall back to the
	// deterministic six phase template.
	setupHandlers(t)
	userID := createUserViaAPI(t, "Alice", map[string]any{"amount_owed": 25500})

	resp := invoke(t, "POST", fmt.Sprintf("/strategies/%d/ai-generate", userID), `{"prompt":"be gentle"}`, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("ai-generate = %d %s", resp.StatusCode, resp.Body)
	}
	var out struct {
		Timeline []strategy.TimelineColumn `json:"timeline"`
		Prompt   *string                   `json:"prompt"`
	}
	decodeBody(t, resp, &out)
	if len(out.Timeline) != 6 {
		t.Errorf("expected the 6 phase fallback, got %d columns", len(out.Timeline))
	}
	if out.Prompt == nil || *out.Prompt != "be gentle" {
		t.Errorf("prompt = %v", out.Prompt)
	}
	if !strings.Contains(resp.Body, "₹25,500") {
		t.Errorf("fallback should mention the formatted amount: %s", resp.Body)
	}
}

func TestGenerateBlockContentIsNotPersisted(t *testing.T) {
	setupHandlers(t)
	userID := createUserViaAPI(t, "Alice", nil)

	body := `{"block":{"source":"email","tone":"friendly","content":""},"prompt":""}`
	resp := invoke(t, "POST", fmt.Sprintf("/strategies/%d/ai-generate-block-content", userID), body, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d %s", resp.StatusCode, resp.Body)
	}
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["content"] == "" {
		t.Error("expected template content")
	}

	get := invoke(t, "GET", fmt.Sprintf("/strategies/%d", userID), "", nil)
	if strings.TrimSpace(get.Body) != "null" {
		t.Errorf("block content generation must not create a strategy: %s", get.Body)
	}
}

func TestListEntitiesSummaries(t *testing.T) {
	setupHandlers(t)
	aliceID := createUserViaAPI(t, "Alice", map[string]any{
		"amount_owed": 1500,
		"due_date":    "2026-02-15",
		"service":     "internet",
	})
	groupBody, _ := json.Marshal(map[string]any{"name": "north", "user_ids": []uint{aliceID}})
	resp := invoke(t, "POST", "/users/group", string(groupBody), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("create group = %d %s", resp.StatusCode, resp.Body)
	}

	list := invoke(t, "GET", "/users/", "", nil)
	var entities []entitySummary
	decodeBody(t, list, &entities)
	if len(entities) != 2 {
		t.Fatalf("entities = %d", len(entities))
	}

	user := entities[0]
	if user.Type != "user" || user.SummaryDetails["amount_owed"] != 1500.0 {
		t.Errorf("user summary = %+v", user)
	}
	if _, ok := user.SummaryDetails["service"]; ok {
		t.Error("summary must not leak full details")
	}

	group := entities[1]
	if group.Type != "group" || group.SummaryDetails["members"] != 1.0 {
		t.Errorf("group summary = %+v", group)
	}
}

func TestListEntitiesRejectsBadStatus(t *testing.T) {
	setupHandlers(t)
	resp := invoke(t, "GET", "/users/", "", map[string]string{"status": "paused"})
	if resp.StatusCode != 400 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUpdateStatusRoute(t *testing.T) {
	setupHandlers(t)
	userID := createUserViaAPI(t, "Alice", nil)

	resp := invoke(t, "PATCH", fmt.Sprintf("/users/%d/status", userID), `{"status":"ongoing"}`, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("patch = %d %s", resp.StatusCode, resp.Body)
	}
	var out struct {
		Type string `json:"type"`
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	decodeBody(t, resp, &out)
	if out.Type != "user" || out.Data.Status != "ongoing" {
		t.Errorf("unexpected payload: %s", resp.Body)
	}

	resp = invoke(t, "PATCH", fmt.Sprintf("/users/%d/status", userID), `{"status":"paused"}`, nil)
	if resp.StatusCode != 400 {
		t.Errorf("invalid status accepted: %d", resp.StatusCode)
	}

	resp = invoke(t, "PATCH", "/users/999/status", `{"status":"ongoing"}`, nil)
	if resp.StatusCode != 404 {
		t.Errorf("missing entity = %d", resp.StatusCode)
	}
}

func TestGetEntityUserThenGroup(t *testing.T) {
	setupHandlers(t)
	aliceID := createUserViaAPI(t, "Alice", nil)
	groupBody, _ := json.Marshal(map[string]any{"name": "north", "user_ids": []uint{aliceID}})
	create := invoke(t, "POST", "/users/group", string(groupBody), nil)
	var group model.Group
	decodeBody(t, create, &group)

	resp := invoke(t, "GET", fmt.Sprintf("/users/%d", group.ID), "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("get group = %d %s", resp.StatusCode, resp.Body)
	}
	var out struct {
		Type    string       `json:"type"`
		Members []model.User `json:"members"`
	}
	decodeBody(t, resp, &out)
	if out.Type != "group" || len(out.Members) != 1 {
		t.Errorf("unexpected group payload: %s", resp.Body)
	}

	resp = invoke(t, "GET", "/users/999", "", nil)
	if resp.StatusCode != 404 || !strings.Contains(resp.Body, "User or group not found") {
		t.Errorf("missing entity = %d %s", resp.StatusCode, resp.Body)
	}
}

func TestUploadCSVCreatesUsers(t *testing.T) {
	setupHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "debtors.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fmt.Fprint(fw, "Username,Bill,DueDate\nAlice,1500,2026-02-15\nBob,800,2026-03-01\n")
	mw.Close()

	resp, err := apiGatewayHandler(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "POST",
		Path:       "/ingestion/upload",
		Headers:    map[string]string{"content-type": mw.FormDataContentType()},
		Body:       buf.String(),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("upload = %d %s", resp.StatusCode, resp.Body)
	}

	var out struct {
		Message string `json:"message"`
		Users   []struct {
			UserID uint   `json:"user_id"`
			Name   string `json:"name"`
		} `json:"users"`
	}
	decodeBody(t, resp, &out)
	if out.Message != "Successfully processed 2 user(s)" {
		t.Errorf("message = %q", out.Message)
	}
	if len(out.Users) != 2 || out.Users[0].Name != "Alice" {
		t.Errorf("users = %+v", out.Users)
	}

	// Re-uploading merges by name instead of duplicating.
	resp, err = apiGatewayHandler(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "POST",
		Path:       "/ingestion/upload",
		Headers:    map[string]string{"content-type": mw.FormDataContentType()},
		Body:       buf.String(),
	})
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("re-upload = %v %d %s", err, resp.StatusCode, resp.Body)
	}

	list := invoke(t, "GET", "/users/", "", nil)
	var entities []entitySummary
	decodeBody(t, list, &entities)
	if len(entities) != 2 {
		t.Errorf("expected 2 users after re-upload, got %d", len(entities))
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	setupHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fmt.Fprint(fw, "hello")
	mw.Close()

	resp, err := apiGatewayHandler(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "POST",
		Path:       "/ingestion/upload",
		Headers:    map[string]string{"Content-Type": mw.FormDataContentType()},
		Body:       buf.String(),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != 400 || !strings.Contains(resp.Body, "Unsupported file type") {
		t.Errorf("upload = %d %s", resp.StatusCode, resp.Body)
	}
}

func TestAddUserRequiresName(t *testing.T) {
	setupHandlers(t)
	resp := invoke(t, "POST", "/ingestion/add-user", `{"name":"  "}`, nil)
	if resp.StatusCode != 400 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAnalyticsRoute(t *testing.T) {
	setupHandlers(t)
	createUserViaAPI(t, "Alice", map[string]any{"amount_owed": 1500, "total_paid": 500})

	resp := invoke(t, "GET", "/users/analytics", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("analytics = %d %s", resp.StatusCode, resp.Body)
	}
	var out struct {
		TotalUsers  int `json:"total_users"`
		Collections struct {
			TotalOwed float64 `json:"total_owed"`
			Remaining float64 `json:"remaining"`
		} `json:"collections"`
	}
	decodeBody(t, resp, &out)
	if out.TotalUsers != 1 {
		t.Errorf("total_users = %d", out.TotalUsers)
	}
	if out.Collections.TotalOwed != 1500 || out.Collections.Remaining != 1000 {
		t.Errorf("collections = %+v", out.Collections)
	}
}
