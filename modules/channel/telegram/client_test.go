package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_RetryAfterRateLimit(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":0}}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":1,"type":"private"}}}`))
	}))
	defer srv.Close()

	c := NewClient("1:token", srv.URL)
	msg, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.MessageID != 7 {
		t.Errorf("message id = %d", msg.MessageID)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
	}))
	defer srv.Close()

	c := NewClient("1:token", srv.URL)
	_, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "<broken"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Code != 400 {
		t.Errorf("code = %d", apiErr.Code)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := Config{Token: "12345:abc-DEF_ghi", AllowedUserIDs: []int64{42}}
	valid.Defaults()
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []Config{
		{AllowedUserIDs: []int64{42}},                                         // missing token
		{Token: "not-a-token", AllowedUserIDs: []int64{42}},                   // bad token format
		{Token: "12345:abc"},                                                  // no allowed users
		{Token: "12345:abc", AllowedUserIDs: []int64{42}, PollingTimeout: 99}, // polling timeout out of range
	}
	for i, cfg := range cases {
		cfg.Defaults()
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
