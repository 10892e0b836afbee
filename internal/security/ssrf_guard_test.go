package security

import (
	"strings"
	"testing"
	"time"
)

// TestValidateURL_AllowedURLs は正常なカタログURLが検証を通過することを検証する。
func TestValidateURL_AllowedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []string{
		"https://shop.example.com/products.json",
		"http://catalog.example.co.jp/api/products",
		"https://8.8.8.8/products.json",
	}

	for _, rawURL := range tests {
		if err := guard.ValidateURL(rawURL); err != nil {
			t.Errorf("ValidateURL(%q) はエラーを返すべきでない, got %v", rawURL, err)
		}
	}
}

// TestValidateURL_BlockedURLs は危険なURLが拒否されることを検証する。
func TestValidateURL_BlockedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name   string
		rawURL string
	}{
		{"空URL", ""},
		{"スキーム不正", "ftp://shop.example.com/products"},
		{"javascriptスキーム", "javascript:alert(1)"},
		{"localhost", "http://localhost/products"},
		{"localhost大文字", "http://LOCALHOST/products"},
		{"ループバックIP", "http://127.0.0.1/products"},
		{"プライベートIP 10系", "http://10.0.0.5/products"},
		{"プライベートIP 172系", "http://172.16.1.1/products"},
		{"プライベートIP 192系", "http://192.168.1.1/products"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/products"},
		{"ホストなし", "https:///products"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) はエラーを返すべき", tt.rawURL)
			}
		})
	}
}

// TestValidateURL_ErrorMessages はエラーメッセージに原因が含まれることを検証する。
func TestValidateURL_ErrorMessages(t *testing.T) {
	guard := NewSSRFGuard()

	err := guard.ValidateURL("ftp://shop.example.com/products")
	if err == nil || !strings.Contains(err.Error(), "disallowed scheme") {
		t.Errorf("スキーム不正のエラーメッセージが不正: %v", err)
	}

	err = guard.ValidateURL("http://169.254.169.254/")
	if err == nil || !strings.Contains(err.Error(), "blocked IP") {
		t.Errorf("ブロックIPのエラーメッセージが不正: %v", err)
	}
}

// TestNewSafeClient はクライアント生成とタイムアウト設定を検証する。
func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient は nil を返すべきでない")
	}
	if client.Timeout != 10*time.Second {
		t.Errorf("タイムアウトが設定されるべき, got %v", client.Timeout)
	}
}
