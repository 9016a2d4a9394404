package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "agrisms/pkg/logx"
)

func TestSendAccepted(t *testing.T) {
	t.Parallel()
	var gotTo, gotFrom, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/Accounts/ACtest/Messages.json") {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ACtest" || pass != "secret" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotTo, gotFrom, gotBody = r.PostForm.Get("To"), r.PostForm.Get("From"), r.PostForm.Get("Body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	c, err := New(Config{AccountSID: "ACtest", AuthToken: "secret", FromNumber: "+15005550006", BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Send(context.Background(), "+251911234567", "Plant now"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotTo != "+251911234567" || gotFrom != "+15005550006" || gotBody != "Plant now" {
		t.Fatalf("form = %q %q %q", gotTo, gotFrom, gotBody)
	}
}

func TestSendRejectedWithReason(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number."}`))
	}))
	defer srv.Close()

	c, err := New(Config{AccountSID: "ACtest", AuthToken: "secret", FromNumber: "+15005550006", BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Send(context.Background(), "bogus", "hi")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(err.Error(), "not a valid phone number") {
		t.Fatalf("error lost carrier reason: %v", err)
	}
}

func TestSendRejectedWithoutBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(Config{AccountSID: "ACtest", AuthToken: "secret", FromNumber: "+15005550006", BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Send(context.Background(), "+251911234567", "hi")
	if err == nil || !strings.Contains(err.Error(), "unexpected status") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{AuthToken: "x", FromNumber: "+1"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing account sid")
	}
	if _, err := New(Config{AccountSID: "AC", AuthToken: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing from number")
	}
}
