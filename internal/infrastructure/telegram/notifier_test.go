package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendPostsFormPayload(t *testing.T) {
	var gotPath, gotChatID, gotText, gotMode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotChatID = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		gotMode = r.PostForm.Get("parse_mode")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("token123")
	n.baseURL = server.URL

	if err := n.Send(context.Background(), -4815571002, "*Nuevo Proceso Agregado*"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotPath != "/bottoken123/sendMessage" {
		t.Errorf("path = %s", gotPath)
	}
	if gotChatID != "-4815571002" {
		t.Errorf("chat_id = %s", gotChatID)
	}
	if gotText != "*Nuevo Proceso Agregado*" {
		t.Errorf("text = %s", gotText)
	}
	if gotMode != "Markdown" {
		t.Errorf("parse_mode = %s", gotMode)
	}
}

func TestSendNonOKIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request: chat not found", http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewNotifier("token123")
	n.baseURL = server.URL

	if err := n.Send(context.Background(), 1, "hola"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSendWithoutTokenIsError(t *testing.T) {
	n := NewNotifier("")
	if err := n.Send(context.Background(), 1, "hola"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
