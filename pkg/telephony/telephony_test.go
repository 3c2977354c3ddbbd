package telephony

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestConnectStream(t *testing.T) {
	tests := []struct {
		name  string
		say   string
		wsURL string
		want  []string
	}{
		{
			name:  "plain text",
			say:   "Please wait while we connect your call.",
			wsURL: "wss://example.ngrok.io/ws/call",
			want: []string{
				"<Say>Please wait while we connect your call.</Say>",
				`<Stream url="wss://example.ngrok.io/ws/call"/>`,
			},
		},
		{
			name:  "xml metacharacters escaped",
			say:   `Tom & Jerry's <special> "offer"`,
			wsURL: "wss://host/ws?a=1&b=2",
			want: []string{
				"Tom &amp; Jerry&#39;s &lt;special&gt; &#34;offer&#34;",
				"a=1&amp;b=2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConnectStream(tt.say, tt.wsURL)
			if !strings.HasPrefix(got, `<?xml version="1.0" encoding="UTF-8"?>`) {
				t.Errorf("missing XML declaration: %q", got)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("TwiML missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient("", "token", "+15550001111"); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("NewClient without SID: error = %v, want ErrNoCredentials", err)
	}
	if _, err := NewClient("AC123", "", "+15550001111"); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("NewClient without token: error = %v, want ErrNoCredentials", err)
	}
}

func TestPlaceCall(t *testing.T) {
	var gotPath, gotAuth string
	var gotForm url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path

		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass

		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "CA0123456789", "status": "queued"}`))
	}))
	defer server.Close()

	client, err := NewClient("AC123", "secret", "+15550001111", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	twiml := ConnectStream("Connecting.", "wss://host/ws/call")
	sid, err := client.PlaceCall(context.Background(), "+15552223333", twiml)
	if err != nil {
		t.Fatalf("PlaceCall() error = %v", err)
	}

	if sid != "CA0123456789" {
		t.Errorf("sid = %q, want CA0123456789", sid)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Calls.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "AC123:secret" {
		t.Errorf("basic auth = %q", gotAuth)
	}
	if gotForm.Get("To") != "+15552223333" {
		t.Errorf("To = %q", gotForm.Get("To"))
	}
	if gotForm.Get("From") != "+15550001111" {
		t.Errorf("From = %q", gotForm.Get("From"))
	}
	if gotForm.Get("Twiml") != twiml {
		t.Errorf("Twiml = %q", gotForm.Get("Twiml"))
	}
}

func TestPlaceCallAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": 21211, "message": "Invalid 'To' Phone Number"}`))
	}))
	defer server.Close()

	client, err := NewClient("AC123", "secret", "+15550001111", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.PlaceCall(context.Background(), "not-a-number", "<Response/>")
	if err == nil {
		t.Fatal("expected error for rejected placement")
	}

	var placeErr *PlacementError
	if !errors.As(err, &placeErr) {
		t.Fatalf("error type = %T, want *PlacementError", err)
	}
	if placeErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", placeErr.StatusCode)
	}
	if placeErr.Code != 21211 {
		t.Errorf("Code = %d, want 21211", placeErr.Code)
	}
	if !strings.Contains(placeErr.Message, "Invalid 'To'") {
		t.Errorf("Message = %q", placeErr.Message)
	}
}

func TestPlaceCallNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client, err := NewClient("AC123", "secret", "+15550001111", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.PlaceCall(context.Background(), "+15552223333", "<Response/>")
	var placeErr *PlacementError
	if !errors.As(err, &placeErr) {
		t.Fatalf("error type = %T, want *PlacementError", err)
	}
	if placeErr.Message != "upstream unavailable" {
		t.Errorf("Message = %q", placeErr.Message)
	}
}
