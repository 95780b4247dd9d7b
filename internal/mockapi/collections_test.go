package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/helpdesk/internal/resources"
	"golang.org/x/crypto/bcrypt"
)

func TestCollectionLifecycle(t *testing.T) {
	collection := NewCollection("devices", []string{"name"}, []string{"name", "status"})

	if missing := collection.Missing(Record{"name": ""}); len(missing) != 1 || missing[0] != "name should not be empty" {
		t.Fatalf("unexpected validation messages %v", missing)
	}

	first := collection.Insert(Record{"name": "Reception PC", "status": "ACTIVE"})
	second := collection.Insert(Record{"name": "Printer", "status": "BROKEN"})
	if recordID(first) != 1 || recordID(second) != 2 {
		t.Fatalf("expected sequential ids, got %v and %v", first["id"], second["id"])
	}

	listed := collection.List(nil)
	if len(listed) != 2 || recordID(listed[0]) != 2 {
		t.Fatalf("expected newest first, got %v", listed)
	}
	filtered := collection.List(map[string]string{"status": "broken"})
	if len(filtered) != 1 || filtered[0].text("name") != "Printer" {
		t.Fatalf("unexpected filter result %v", filtered)
	}

	merged, err := collection.Merge(1, Record{"status": "RETIRED", "id": 99, "name": nil})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.text("status") != "RETIRED" || recordID(merged) != 1 {
		t.Fatalf("unexpected merge result %v", merged)
	}
	if _, present := merged["name"]; present {
		t.Fatalf("expected null to remove the field")
	}

	merged["status"] = "MUTATED"
	stored, _ := collection.Get(1)
	if stored.text("status") != "RETIRED" {
		t.Fatalf("expected stored record to be isolated from returned copies")
	}

	if err := collection.Delete(1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := collection.Delete(1); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if _, err := collection.Merge(1, Record{}); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound from merge, got %v", err)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	testCases := []struct {
		name          string
		page          int
		pageSize      int
		expectedLen   int
		expectedPages int
	}{
		{name: "defaults", page: 0, pageSize: 0, expectedLen: 10, expectedPages: 2},
		{name: "second page", page: 2, pageSize: 10, expectedLen: 2, expectedPages: 2},
		{name: "past the end", page: 5, pageSize: 10, expectedLen: 0, expectedPages: 2},
		{name: "capped page size", page: 1, pageSize: 1000, expectedLen: 12, expectedPages: 1},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			page, meta := paginate(items, testCase.page, testCase.pageSize)
			if len(page) != testCase.expectedLen || meta.Pages != testCase.expectedPages || meta.Total != len(items) {
				t.Fatalf("unexpected page len=%d meta=%+v", len(page), meta)
			}
		})
	}
}

func TestDirectory(t *testing.T) {
	directory := NewDirectory(bcrypt.MinCost)
	created, err := directory.Add("Admin", "Admin@Example.com", "secret", adminRole())
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := directory.Add("Twin", "admin@example.com", "other", adminRole()); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	authenticated, err := directory.Authenticate("admin@example.com", "secret")
	if err != nil || authenticated.ID != created.ID {
		t.Fatalf("expected case-insensitive login, got %+v (%v)", authenticated, err)
	}
	if _, err := directory.Authenticate("admin@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	renamed := "Root"
	updated, err := directory.Update(created.ID, &renamed, nil, nil)
	if err != nil || updated.Name != "Root" || updated.Email != "Admin@Example.com" {
		t.Fatalf("unexpected update result %+v (%v)", updated, err)
	}
	if users := directory.List(map[string]string{"name": "ro"}); len(users) != 1 {
		t.Fatalf("expected filtered listing, got %v", users)
	}
	if err := directory.Delete(created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := directory.Lookup(created.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResourceRoutesRequireBearerAndValidate(t *testing.T) {
	installProviders(t)
	configuration := newTestServerConfig()
	router := newSeededRouter(t, configuration)

	unauthorized := httptest.NewRecorder()
	router.ServeHTTP(unauthorized, httptest.NewRequest(http.MethodGet, "/devices", nil))
	if unauthorized.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", unauthorized.Code)
	}

	token, _, err := MintAccessToken(seedAdmin(), configuration.Issuer, configuration.SigningKey, configuration.SessionTTL)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	serve := func(method string, target string, body string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Authorization", "Bearer "+token)
		request.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder
	}

	listed := serve(http.MethodGet, "/devices?current=1&pageSize=1&type=printer", "")
	var page struct {
		Data struct {
			Result []map[string]any `json:"result"`
			Meta   struct {
				Total int `json:"total"`
				Pages int `json:"pages"`
			} `json:"meta"`
		} `json:"data"`
	}
	if err := json.Unmarshal(listed.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(page.Data.Result) != 1 || page.Data.Meta.Total != 1 || page.Data.Result[0]["code"] != "PR-014" {
		t.Fatalf("unexpected filtered devices %s", listed.Body.String())
	}

	invalid := serve(http.MethodPost, "/permissions", `{"name":"Audit","apiPath":"/audit","method":"TRACE","module":"AUDIT"}`)
	if invalid.Code != http.StatusBadRequest || !strings.Contains(invalid.Body.String(), "method must be one of") {
		t.Fatalf("expected method validation failure, got %d %s", invalid.Code, invalid.Body.String())
	}
	created := serve(http.MethodPost, "/permissions", `{"name":"Audit","apiPath":"/audit","method":"get","module":"AUDIT"}`)
	if created.Code != http.StatusCreated || !strings.Contains(created.Body.String(), `"method":"GET"`) {
		t.Fatalf("expected normalized permission, got %d %s", created.Code, created.Body.String())
	}

	missing := serve(http.MethodPatch, "/devices/999", `{"status":"BROKEN"}`)
	if missing.Code != http.StatusNotFound || !strings.Contains(missing.Body.String(), "device not found") {
		t.Fatalf("expected 404, got %d %s", missing.Code, missing.Body.String())
	}
	badID := serve(http.MethodDelete, "/devices/abc", "")
	if badID.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", badID.Code)
	}

	selfDelete := serve(http.MethodDelete, "/users/1", "")
	if selfDelete.Code != http.StatusBadRequest {
		t.Fatalf("expected signed-in user deletion to be refused, got %d", selfDelete.Code)
	}

	roles := serve(http.MethodGet, "/roles", "")
	if strings.Contains(roles.Body.String(), `"meta"`) {
		t.Fatalf("expected unpaged role listing, got %s", roles.Body.String())
	}
}

func adminRole() resources.Role {
	return resources.Role{ID: 1, Name: "admin", Active: true}
}

func seedAdmin() resources.User {
	return resources.User{ID: 1, Email: SeedAdminEmail, Name: "Admin", Role: adminRole()}
}

func TestConfigureCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	middleware, err := ConfigureCORS(nil, []string{"http://localhost:3000", "http://localhost:3000/"})
	if err != nil {
		t.Fatalf("unexpected error configuring CORS: %v", err)
	}
	router.Use(middleware)
	router.OPTIONS("/resource", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/resource", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	request.Header.Set("Access-Control-Request-Headers", "Authorization, X-Request-ID")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from preflight, got %d", recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:3000" {
		t.Fatalf("unexpected allowed origin header: %q", origin)
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be allowed")
	}
}

func TestConfigureCORSRejectsUnsafeOrigins(t *testing.T) {
	testCases := []struct {
		name    string
		origins []string
	}{
		{name: "nil", origins: nil},
		{name: "blank", origins: []string{"  "}},
		{name: "wildcard", origins: []string{"*"}},
		{name: "path", origins: []string{"https://dashboard.example.com/app"}},
		{name: "plain http on public host", origins: []string{"http://dashboard.example.com"}},
		{name: "ftp", origins: []string{"ftp://dashboard.example.com"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := ConfigureCORS(nil, testCase.origins); err == nil {
				t.Fatalf("expected error for %v", testCase.origins)
			}
		})
	}
}
