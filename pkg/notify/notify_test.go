package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSMSSenderSend(t *testing.T) {
	var captured *http.Request
	var capturedBody string

	s := NewSMSSender("AC123", "secret", "+15550001111")
	s.httpClient = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			captured = req
			b, _ := io.ReadAll(req.Body)
			capturedBody = string(b)
			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(strings.NewReader(`{"sid":"SM1"}`)),
				Header:     http.Header{},
			}, nil
		}),
	}

	err := s.Send(context.Background(), Message{To: "2348012345678", Body: "hello"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if !strings.Contains(captured.URL.Path, "/Accounts/AC123/Messages.json") {
		t.Errorf("request path = %s; want Twilio messages endpoint", captured.URL.Path)
	}
	user, pass, ok := captured.BasicAuth()
	if !ok || user != "AC123" || pass != "secret" {
		t.Errorf("basic auth = %s/%s ok=%v; want AC123/secret", user, pass, ok)
	}
	if !strings.Contains(capturedBody, "To=%2B2348012345678") {
		t.Errorf("body %q missing E.164 formatted To", capturedBody)
	}
}

func TestSMSSenderSendFailure(t *testing.T) {
	s := NewSMSSender("AC123", "secret", "+15550001111")
	s.httpClient = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusUnauthorized,
				Status:     "401 Unauthorized",
				Body:       io.NopCloser(strings.NewReader(`{}`)),
				Header:     http.Header{},
			}, nil
		}),
	}
	if err := s.Send(context.Background(), Message{To: "+123", Body: "x"}); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestFormatE164(t *testing.T) {
	tests := []struct{ in, want string }{
		{"+2348012345678", "+2348012345678"},
		{"2348012345678", "+2348012345678"},
		{"234-801-234-5678", "+2348012345678"},
	}
	for _, tt := range tests {
		if got := formatE164(tt.in); got != tt.want {
			t.Errorf("formatE164(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
