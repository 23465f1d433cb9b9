package credentials

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// testKeyPEM generates a throwaway RSA key in the PKCS#1 PEM form Google
// service-account files carry.
func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func serviceAccountJSON(t *testing.T, tokenURI string) string {
	t.Helper()
	data, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   "test-project",
		"client_email": "proxy@test-project.iam.gserviceaccount.com",
		"private_key":  testKeyPEM(t),
		"token_uri":    tokenURI,
	})
	if err != nil {
		t.Fatalf("marshal service account: %v", err)
	}
	return string(data)
}

func TestProviderCachesToken(t *testing.T) {
	var exchanges atomic.Int64
	tokenEndpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("assertion") == "" {
			t.Error("token exchange request missing assertion")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenEndpoint.Close()

	src, err := NewInlineSource(serviceAccountJSON(t, tokenEndpoint.URL))
	if err != nil {
		t.Fatalf("NewInlineSource: %v", err)
	}
	provider, err := NewProvider(src)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	token, err := provider.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token.AccessToken != "access-token-1" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}

	// A second call within the token's lifetime must hit the cache.
	if _, err := provider.Token(); err != nil {
		t.Fatalf("Token (cached): %v", err)
	}
	if got := exchanges.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestProviderCoalescesConcurrentRefresh(t *testing.T) {
	var exchanges atomic.Int64
	tokenEndpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenEndpoint.Close()

	src, _ := NewInlineSource(serviceAccountJSON(t, tokenEndpoint.URL))
	provider, err := NewProvider(src)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := provider.Token(); err != nil {
				t.Errorf("Token: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := exchanges.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1 (refresh must coalesce)", got)
	}
}

func TestProviderRetriesFailedExchange(t *testing.T) {
	var exchanges atomic.Int64
	tokenEndpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exchanges.Add(1) < 3 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-after-retry",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenEndpoint.Close()

	src, _ := NewInlineSource(serviceAccountJSON(t, tokenEndpoint.URL))
	provider, err := NewProvider(src)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	token, err := provider.Token()
	if err != nil {
		t.Fatalf("Token after retries: %v", err)
	}
	if token.AccessToken != "access-token-after-retry" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if got := exchanges.Load(); got != 3 {
		t.Errorf("token endpoint hit %d times, want 3", got)
	}
}

func TestParseServiceAccountValidation(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"not json", "not json at all"},
		{"wrong type", `{"type":"authorized_user","client_email":"a@b","private_key":"k","token_uri":"u"}`},
		{"missing client_email", `{"type":"service_account","private_key":"k","token_uri":"u"}`},
		{"missing private_key", `{"type":"service_account","client_email":"a@b","token_uri":"u"}`},
		{"missing token_uri", `{"type":"service_account","client_email":"a@b","private_key":"k"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := ParseServiceAccount([]byte(c.json)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	valid := `{"type":"service_account","client_email":"a@b","private_key":"k","token_uri":"https://oauth2.googleapis.com/token"}`
	sa, err := ParseServiceAccount([]byte(valid))
	if err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if sa.ClientEmail != "a@b" {
		t.Errorf("ClientEmail = %q", sa.ClientEmail)
	}
}

func TestEnvSourceDecodesBase64(t *testing.T) {
	keyJSON := `{"type":"service_account"}`
	t.Setenv("VERTEXPASS_TEST_SA", base64.StdEncoding.EncodeToString([]byte(keyJSON)))

	src, err := NewEnvSource("VERTEXPASS_TEST_SA")
	if err != nil {
		t.Fatalf("NewEnvSource: %v", err)
	}
	got, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != keyJSON {
		t.Errorf("Read = %q, want decoded JSON", got)
	}
}

func TestEnvSourceAcceptsRawJSON(t *testing.T) {
	keyJSON := `{"type":"service_account"}`
	t.Setenv("VERTEXPASS_TEST_SA_RAW", keyJSON)

	src, err := NewEnvSource("VERTEXPASS_TEST_SA_RAW")
	if err != nil {
		t.Fatalf("NewEnvSource: %v", err)
	}
	got, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != keyJSON {
		t.Errorf("Read = %q", got)
	}
}
