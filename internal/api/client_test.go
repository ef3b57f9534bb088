package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/version"
)

func newTestClient(url string) *Client {
	return NewClient(Options{BaseURL: url, Timeout: time.Second, UserAgent: "test"}, zerolog.Nop())
}

func TestLoginSendsCredentialsAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("Accept") != "application/json" {
			t.Errorf("json headers missing: %v", r.Header)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("request id header missing")
		}
		var body LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Email != "a@b.c" || body.Password != "pw" || body.Code != "123456" {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"accessToken": "tok",
			"token_type": "Bearer",
			"unknown_field": 1,
			"me": {"id": 7, "uuid": "u-7", "username": "alice", "balance": "10.5", "can_withdraw": 1, "can_sell": null}
		}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "pw", Code: "123456"})
	if err != nil {
		t.Fatalf("login should succeed: %v", err)
	}
	if resp.AccessToken != "tok" || resp.Me.UUID != "u-7" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !resp.Me.Balance.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("balance not decoded: %s", resp.Me.Balance)
	}
	if resp.Me.CanWithdraw != model.TriTrue || resp.Me.CanSell != model.TriUnknown {
		t.Fatalf("tri-state flags not decoded: %v %v", resp.Me.CanWithdraw, resp.Me.CanSell)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	if _, err := newTestClient("http://127.0.0.1:1").Login(context.Background(), LoginRequest{}); err == nil {
		t.Fatal("empty credentials should fail before any request")
	}
}

func TestHTTPErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"The given data was invalid.","errors":{"email":["taken"]}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Login(context.Background(), LoginRequest{Email: "a", Password: "b"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", httpErr.StatusCode)
	}
	if httpErr.Message() != "The given data was invalid." {
		t.Fatalf("unexpected message %q", httpErr.Message())
	}
	if IsConnectivityError(err) {
		t.Fatal("http errors are not connectivity errors")
	}
}

func TestHTTPErrorMessageFallbacks(t *testing.T) {
	cases := map[string]string{
		`{"errors":{"amount":["too small"]}}`: "too small",
		`{"error":"denied"}`:                  "denied",
		"plain text failure\n":                "plain text failure",
	}
	for body, want := range cases {
		e := &HTTPError{StatusCode: 400, Body: body}
		if got := e.Message(); got != want {
			t.Errorf("body %q: want %q, got %q", body, want, got)
		}
	}
}

func TestListOffersEncodesFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		if q.Get("type") != "sell" || q.Get("coin") != "BTC" || q.Get("min") != "10" ||
			q.Get("max") != "100" || q.Get("vip") != "1" || q.Get("page") != "2" || q.Get("perPage") != "50" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Has("my") {
			t.Errorf("my should be omitted")
		}
		_, _ = w.Write([]byte(`{"current_page":2,"last_page":2,"total":1,"per_page":50,
			"data":[{"uuid":"o-1","type":"sell","coin":"BTC","amount":"20","receive":"55","only_kyc":true,"private":0,"only_vip":"1"}]}`))
	}))
	defer srv.Close()

	min, max := decimal.NewFromInt(10), decimal.NewFromInt(100)
	page, err := newTestClient(srv.URL).ListOffers(context.Background(), "tok", model.OfferFilter{
		Type: model.OfferTypeSell, Coin: "BTC", Min: &min, Max: &max, VIP: true, Page: 2, PerPage: 50,
	})
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].UUID != "o-1" {
		t.Fatalf("unexpected page %+v", page)
	}
	if !page.Data[0].OnlyKYC.IsSet() || page.Data[0].Private.IsSet() {
		t.Fatalf("flags not decoded: %+v", page.Data[0])
	}
	if page.HasMore() {
		t.Fatal("last page should not report more")
	}
}

func TestListAllOffersFollowsPages(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		p := r.URL.Query().Get("page")
		fmt.Fprintf(w, `{"current_page":%s,"last_page":3,"data":[{"uuid":"o-%s","type":"buy"}]}`, p, p)
	}))
	defer srv.Close()

	offers, err := newTestClient(srv.URL).ListAllOffers(context.Background(), "", model.OfferFilter{}, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(offers) != 3 || calls != 3 {
		t.Fatalf("expected 3 offers over 3 calls, got %d over %d", len(offers), calls)
	}

	calls = 0
	offers, err = newTestClient(srv.URL).ListAllOffers(context.Background(), "", model.OfferFilter{}, 2)
	if err != nil {
		t.Fatalf("list capped: %v", err)
	}
	if len(offers) != 2 || calls != 2 {
		t.Fatalf("page cap ignored: %d offers over %d calls", len(offers), calls)
	}
}

func TestProfileAcceptsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":1,"uuid":"u-1","username":"bob","is_kyc":true}}`))
	}))
	defer srv.Close()

	user, err := newTestClient(srv.URL).Profile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if user.UUID != "u-1" || !user.IsKYC {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestUserAgentDefaultsToBuildVersion(t *testing.T) {
	agents := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"data":{"id":1,"uuid":"u-1"}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	if _, err := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop()).Profile(ctx, "tok"); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if _, err := newTestClient(srv.URL).Profile(ctx, "tok"); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if got := <-agents; got != version.UserAgent() {
		t.Fatalf("default user agent = %q", got)
	}
	if got := <-agents; got != "test" {
		t.Fatalf("configured user agent = %q", got)
	}
}

func TestCancelOfferPostsUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/p2p/cancel" || body["uuid"] != "o-9" {
			t.Errorf("unexpected cancel request %s %v", r.URL.Path, body)
		}
		_, _ = w.Write([]byte(`{"message":"ok","status":"cancelled"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).CancelOffer(context.Background(), "tok", "o-9")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if resp.Status != "cancelled" {
		t.Fatalf("unexpected status %q", resp.Status)
	}
}

func TestConnectivityClassification(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Profile(context.Background(), "tok")
	if err == nil {
		t.Fatal("closed port should fail")
	}
	if !IsConnectivityError(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	if IsConnectivityError(errors.New("decode profile: bad json")) {
		t.Fatal("decode errors are not connectivity errors")
	}
	if !IsConnectivityError(errors.New("dial tcp: lookup api.example: no such host")) {
		t.Fatal("dns failures are connectivity errors")
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got := LoginResponse{AccessToken: token}.ExpiresAt()
	if got == nil || !got.Equal(exp) {
		t.Fatalf("expected expiry %s, got %v", exp, got)
	}
	if TokenExpiry("opaque-token") != nil {
		t.Fatal("opaque tokens have no expiry")
	}
}
