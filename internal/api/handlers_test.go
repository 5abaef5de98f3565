package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/technosupport/campus-presence/internal/api"
	"github.com/technosupport/campus-presence/internal/auth"
	"github.com/technosupport/campus-presence/internal/session"
	"github.com/technosupport/campus-presence/internal/tokens"
)

func TestLoginHandler(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	sessionMgr := session.NewManager(mr.Addr(), "")
	tokenMgr := tokens.NewManager("test-key")
	handler := &api.AuthHandler{
		DB:      db,
		Session: sessionMgr,
		Tokens:  tokenMgr,
	}

	reqBody := map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	mock.ExpectBegin()

	hashedPassword, _ := auth.HashPassword("password123")
	rows := sqlmock.NewRows([]string{"id", "email", "display_name", "password_hash", "is_disabled", "created_at", "updated_at", "deleted_at"}).
		AddRow("00000000-0000-0000-0000-000000000001", "test@example.com", "Test User", hashedPassword, false, time.Now(), time.Now(), nil)
	mock.ExpectQuery("SELECT id, email, display_name").WithArgs("test@example.com").WillReturnRows(rows)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	handler.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 OK, got %d", resp.StatusCode)
	}

	var tokenResp api.TokenResponse
	json.NewDecoder(resp.Body).Decode(&tokenResp)
	if tokenResp.AccessToken == "" {
		t.Error("Expected Access Token")
	}
}
