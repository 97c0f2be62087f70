package gzhmu

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

const loginPage = `<html><body>
<form method="post" id="fm1" action="/cas/login">
<input type="hidden" name="execution" value="exec-1"/>
</form></body></html>`

// captchaHandler serves the captcha envelope with a rendered "3x4"
// expression, so BypassCaptcha resolves to "12".
func captchaHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	img := renderCaptcha(t, 3, "multiply", 4)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode captcha image: %v", err)
	}
	body, err := json.Marshal(map[string]string{
		"errorCode":    "success",
		"errorMessage": "",
		"data":         "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		t.Fatalf("Failed to marshal captcha envelope: %v", err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func onCampusPortal(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithSSOBase(srv.URL), WithPortalBase(srv.URL)}, opts...)
	c, err := New("2023123456", "password123", opts...)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		username string
		password string
		want     error
	}{
		{"", "password123", ErrEmptyUsername},
		{"abc", "password123", ErrInvalidUsername},
		{"20231234", "password123", ErrInvalidUsername},
		{"2023123456", "", ErrEmptyPassword},
		{"2023123456", "short", ErrInvalidPassword},
		{"2023123456", "password123", nil},
	}
	for _, tt := range tests {
		_, err := New(tt.username, tt.password)
		if !errors.Is(err, tt.want) {
			t.Errorf("New(%q, %q) error = %v, want %v", tt.username, tt.password, err, tt.want)
		}
	}
}

func TestExtractExecution(t *testing.T) {
	if got := extractExecution(loginPage, "fm1"); got != "exec-1" {
		t.Errorf("Expected execution exec-1, got %q", got)
	}
	if got := extractExecution(loginPage, "resetPasswordForm"); got != "" {
		t.Errorf("Expected empty execution for missing form, got %q", got)
	}
	if got := extractExecution("<html></html>", "fm1"); got != "" {
		t.Errorf("Expected empty execution for empty page, got %q", got)
	}
}

func TestHiddenFieldValue(t *testing.T) {
	html := `<input id="phone" name="phone" type="hidden" value="138****1234"/>
<input id="email" name="email" type="hidden" value="u***@gzhmu.edu.cn"/>`
	if got := hiddenFieldValue(html, "phone"); got != "138****1234" {
		t.Errorf("Expected phone value, got %q", got)
	}
	if got := hiddenFieldValue(html, "email"); got != "u***@gzhmu.edu.cn" {
		t.Errorf("Expected email value, got %q", got)
	}
	if got := hiddenFieldValue(html, "fax"); got != "" {
		t.Errorf("Expected empty value for missing field, got %q", got)
	}
}

func TestLoginAlertError(t *testing.T) {
	if err := loginAlertError("<html></html>"); err == nil {
		t.Error("Expected error when alert box is missing")
	}
	html := `<div class="alert alert-danger"><span>用户名或密码错误，请检查后重试！</span></div>`
	if err := loginAlertError(html); !errors.Is(err, ErrIncorrectCredential) {
		t.Errorf("Expected ErrIncorrectCredential, got %v", err)
	}
	html = `<div class="alert alert-danger"><span>验证码错误</span></div>`
	if err := loginAlertError(html); !errors.Is(err, ErrIncorrectVerificationCode) {
		t.Errorf("Expected ErrIncorrectVerificationCode, got %v", err)
	}
	html = `<div class="alert alert-danger"><span>服务暂不可用</span></div>`
	if err := loginAlertError(html); err != nil {
		t.Errorf("Expected nil for unrecognized alert, got %v", err)
	}
}

func TestTicketFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://portal.gzhmu.edu.cn/portal/login/?ticket=ST-abc123", "ST-abc123"},
		{"/portal/home?ticket=ST-rel", "ST-rel"},
		{"https://portal.gzhmu.edu.cn/portal/login/", ""},
	}
	for _, tt := range tests {
		if got := ticketFromURL(tt.url); got != tt.want {
			t.Errorf("ticketFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestResolveLocation(t *testing.T) {
	got, err := resolveLocation("https://sso.gzhmu.edu.cn/cas/login", "/portal/home?x=1")
	if err != nil {
		t.Fatalf("resolveLocation failed: %v", err)
	}
	if got != "https://sso.gzhmu.edu.cn/portal/home?x=1" {
		t.Errorf("Unexpected resolved location %q", got)
	}
	got, err = resolveLocation("https://sso.gzhmu.edu.cn/cas/login", "https://other.example.com/a")
	if err != nil {
		t.Fatalf("resolveLocation failed: %v", err)
	}
	if got != "https://other.example.com/a" {
		t.Errorf("Absolute location should pass through, got %q", got)
	}
}

func TestIsOnCampusNetwork(t *testing.T) {
	on := httptest.NewServer(http.HandlerFunc(onCampusPortal))
	defer on.Close()

	c := newTestClient(t, on)
	got, err := c.IsOnCampusNetwork(context.Background())
	if err != nil {
		t.Fatalf("IsOnCampusNetwork failed: %v", err)
	}
	if !got {
		t.Error("Expected on campus for a direct portal response")
	}

	off := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", webvpnPortalSignature)
		w.WriteHeader(http.StatusFound)
	}))
	defer off.Close()

	got, err = IsOnCampusNetwork(context.Background(), WithPortalBase(off.URL))
	if err != nil {
		t.Fatalf("IsOnCampusNetwork failed: %v", err)
	}
	if got {
		t.Error("Expected off campus for the Web VPN redirect")
	}
}

func TestBypassCaptcha(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cas/captcha", captchaHandler(t))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	code, err := c.BypassCaptcha(context.Background())
	if err != nil {
		t.Fatalf("BypassCaptcha failed: %v", err)
	}
	if code != "12" {
		t.Errorf("Expected code 12, got %q", code)
	}
}

func TestBypassCaptchaFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errorCode":"fail","errorMessage":"server busy","data":""}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.BypassCaptcha(context.Background())
	var captchaErr *CaptchaError
	if !errors.As(err, &captchaErr) {
		t.Fatalf("Expected CaptchaError, got %v", err)
	}
}

func TestLoginIncorrectCredential(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portal", onCampusPortal)
	mux.HandleFunc("/cas/captcha", captchaHandler(t))
	mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginPage)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `<div class="alert alert-danger"><span>用户名或密码错误，请检查后重试！</span></div>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Login(context.Background(), "")
	if !errors.Is(err, ErrIncorrectCredential) {
		t.Fatalf("Expected ErrIncorrectCredential, got %v", err)
	}
}

func TestLoginCapturesFirstTicket(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portal", onCampusPortal)
	mux.HandleFunc("/cas/captcha", captchaHandler(t))
	mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginPage)
			return
		}
		if r.FormValue("username") != "2023123456" {
			t.Errorf("Unexpected username %q", r.FormValue("username"))
		}
		if r.FormValue("execution") != "exec-1" {
			t.Errorf("Unexpected execution %q", r.FormValue("execution"))
		}
		w.Header().Set("Location", "/hop1?ticket=ST-abc123")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/hop1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/hop2?ticket=ST-zzz999")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/hop2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/done")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "welcome")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	location, err := c.Login(context.Background(), "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if location != srv.URL+"/done" {
		t.Errorf("Expected final location %q, got %q", srv.URL+"/done", location)
	}
	if c.Ticket() != "ST-abc123" {
		t.Errorf("Expected first ticket in the chain, got %q", c.Ticket())
	}
}

func TestLoginAlreadyAuthenticated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portal", onCampusPortal)
	mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/portal/home?ticket=ST-already")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/portal/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>home</html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	location, err := c.Login(context.Background(), "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if location != "/portal/home?ticket=ST-already" {
		t.Errorf("Unexpected location %q", location)
	}
	if c.Ticket() != "ST-already" {
		t.Errorf("Expected ticket ST-already, got %q", c.Ticket())
	}
}

func TestLoginOffCampusWithoutWebVPN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", webvpnPortalSignature)
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Login(context.Background(), "")
	if !errors.Is(err, ErrNotOnCampusNetwork) {
		t.Fatalf("Expected ErrNotOnCampusNetwork, got %v", err)
	}
}

func TestAccessToken(t *testing.T) {
	configHits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/portal/login/config.js", func(w http.ResponseWriter, r *http.Request) {
		configHits++
		fmt.Fprint(w, "var oauth = { CLIENT_ID: 'cid123', CLIENT_SECRET: 'sec456' };")
	})
	mux.HandleFunc("/qzbps/oauth2/v3/sso/login/cas10/apply", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode cas10 payload: %v", err)
		}
		if payload["ticket"] != "ST-1" {
			t.Errorf("Expected ticket ST-1, got %q", payload["ticket"])
		}
		fmt.Fprint(w, `{"data":"state-1"}`)
	})
	mux.HandleFunc("/qzbps/oauth2/v3/authorize/apply", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["client_id"] != "cid123" || payload["login_state"] != "state-1" {
			t.Errorf("Unexpected authorize payload %v", payload)
		}
		fmt.Fprint(w, `{"data":"code-1"}`)
	})
	mux.HandleFunc("/qzbps/oauth2/v3/authentication/apply", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["authorize_code"] != "code-1" || payload["client_secret"] != "sec456" {
			t.Errorf("Unexpected authentication payload %v", payload)
		}
		fmt.Fprint(w, `{"data":{"access_token":"tok-1"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	c.ticket = "ST-1"

	token, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("Expected token tok-1, got %q", token)
	}

	// Second call must hit the cache.
	token, err = c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("Cached AccessToken failed: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("Expected cached token tok-1, got %q", token)
	}
	if configHits != 1 {
		t.Errorf("Expected one config.js fetch, got %d", configHits)
	}
}

func TestAccessTokenWithoutTicket(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.AccessToken(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Expected ErrSessionExpired, got %v", err)
	}
}

func contactServer(t *testing.T, finalPage string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cas/captcha", captchaHandler(t))
	mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<form method="post" id="passwordManagementForm">
<input type="hidden" name="execution" value="pm-exec"/></form>`)
			return
		}
		switch r.FormValue("_eventId") {
		case "customResetPassword":
			if r.FormValue("execution") != "pm-exec" {
				t.Errorf("Unexpected execution %q", r.FormValue("execution"))
			}
			fmt.Fprint(w, `<form method="post" id="resetPasswordForm">
<input type="hidden" name="execution" value="rp-exec"/></form>`)
		case "submit":
			if r.FormValue("execution") != "rp-exec" {
				t.Errorf("Unexpected execution %q", r.FormValue("execution"))
			}
			fmt.Fprint(w, finalPage)
		default:
			t.Errorf("Unexpected _eventId %q", r.FormValue("_eventId"))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetContact(t *testing.T) {
	srv := contactServer(t, `<div>
<input id="phone" name="phone" type="hidden" value="138****1234"/>
<input id="email" name="email" type="hidden" value="u***@gzhmu.edu.cn"/>
</div>`)

	contact, err := GetContact(context.Background(), "2023123456", false, WithSSOBase(srv.URL))
	if err != nil {
		t.Fatalf("GetContact failed: %v", err)
	}
	if contact.Phone != "138****1234" {
		t.Errorf("Expected masked phone, got %q", contact.Phone)
	}
	if contact.Email != "u***@gzhmu.edu.cn" {
		t.Errorf("Expected masked email, got %q", contact.Email)
	}
}

func TestGetContactUsernameNotExists(t *testing.T) {
	srv := contactServer(t, `<div class="alert alert-danger">账号不存在</div>`)
	_, err := GetContact(context.Background(), "2023123456", false, WithSSOBase(srv.URL))
	if !errors.Is(err, ErrUsernameNotExists) {
		t.Fatalf("Expected ErrUsernameNotExists, got %v", err)
	}
}

func TestGetContactNoRecords(t *testing.T) {
	srv := contactServer(t, `<div>信息缺失，无法重置密码，请联系管理员重置</div>`)
	contact, err := GetContact(context.Background(), "2023123456", false, WithSSOBase(srv.URL))
	if err != nil {
		t.Fatalf("GetContact failed: %v", err)
	}
	if contact.Phone != "" || contact.Email != "" {
		t.Errorf("Expected empty contact, got %+v", contact)
	}
}

func TestGetContactInvalidUsername(t *testing.T) {
	_, err := GetContact(context.Background(), "abc", false)
	if !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("Expected ErrInvalidUsername, got %v", err)
	}
}
