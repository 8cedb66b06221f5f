package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/swappy/picora/internal/auth"
	"github.com/swappy/picora/internal/booking"
	"github.com/swappy/picora/internal/photos"
	"github.com/swappy/picora/internal/workbook"
	"gorm.io/gorm"
)

const testOperatorPIN = "2468"

var testNow = time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

type testEnvironment struct {
	handler      http.Handler
	service      *booking.Service
	token        string
	closeStreams func()
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:picora_server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(booking.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := booking.NewService(booking.ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return testNow },
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("failed to construct booking service: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "picora-auth",
		Audience:      "picora-api",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct token issuer: %v", err)
	}
	authenticator, err := auth.NewOperatorAuthenticator(testOperatorPIN)
	if err != nil {
		t.Fatalf("failed to construct authenticator: %v", err)
	}
	store, err := photos.NewStore(photos.StoreConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to construct photo store: %v", err)
	}

	streamsDone := make(chan struct{})
	var closeOnce sync.Once
	closeStreams := func() { closeOnce.Do(func() { close(streamsDone) }) }
	t.Cleanup(closeStreams)

	handler, err := NewHTTPHandler(Dependencies{
		BookingService: service,
		Importer:       workbook.NewImporter(workbook.ImporterConfig{}),
		Photos:         store,
		TokenManager:   tokens,
		Authenticator:  authenticator,
		Clock:          func() time.Time { return testNow },
		StreamsDone:    streamsDone,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	token, _, err := tokens.IssueToken(t.Context(), auth.OperatorSubject)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return &testEnvironment{handler: handler, service: service, token: token, closeStreams: closeStreams}
}

func (e *testEnvironment) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, target, reader)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+e.token)
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}
