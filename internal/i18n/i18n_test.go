package i18n

import "testing"

func TestLoad(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestT(t *testing.T) {
	tests := []struct {
		lang     string
		key      string
		expected string
	}{
		{"zh", Unauthorized, "认证失败，请重新登录"},
		{"zh", RequestFailed, "请求失败"},
		{"en", Unauthorized, "Authentication failed, please log in again"},
		{"en-US,en;q=0.9", RequestFailed, "Request failed"},
		{"fr", RequestFailed, "请求失败"},
		{"", AuthBadCreds, "用户名或密码错误"},
		{"en", "no.such.key", "no.such.key"},
	}

	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.key, func(t *testing.T) {
			if got := T(tt.lang, tt.key); got != tt.expected {
				t.Errorf("T(%q, %q) = %q, expected %q", tt.lang, tt.key, got, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"zh-CN,zh;q=0.9", LangZH},
		{"en_GB", LangEN},
		{"de-DE, en;q=0.5", LangEN},
		{"ja", LangZH},
		{"", LangZH},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestPacksHaveSameKeys(t *testing.T) {
	Load()
	for key := range packs[LangZH] {
		if _, ok := packs[LangEN][key]; !ok {
			t.Errorf("key %q missing from en pack", key)
		}
	}
	for key := range packs[LangEN] {
		if _, ok := packs[LangZH][key]; !ok {
			t.Errorf("key %q missing from zh pack", key)
		}
	}
}
