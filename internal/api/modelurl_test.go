package api

import (
	"net/url"
	"strings"
	"testing"
)

func testRules() ModelURLRules {
	return ModelURLRules{
		BaseURL:    "https://api.sruim.xin",
		ProxyHosts: []string{"tripo3d.com"},
		Fallback:   "https://example.com/fallback.glb",
	}
}

func TestNormalize(t *testing.T) {
	r := testRules()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty uses fallback", "", "https://example.com/fallback.glb"},
		{"whitespace uses fallback", "   ", "https://example.com/fallback.glb"},
		{"https unchanged", "https://cdn.example/m.glb", "https://cdn.example/m.glb"},
		{"http coerced", "http://cdn.example/m.glb", "https://cdn.example/m.glb"},
		{"upper-case scheme coerced", "HTTP://cdn.example/m.glb", "https://cdn.example/m.glb"},
		{
			"proxy host rewritten",
			"https://tripo3d.com/m.glb?sig=a&b=c",
			"https://api.sruim.xin/api/proxy-model?url=" + url.QueryEscape("https://tripo3d.com/m.glb?sig=a&b=c"),
		},
		{
			"proxy subdomain coerced then rewritten",
			"http://assets.tripo3d.com/m.glb",
			"https://api.sruim.xin/api/proxy-model?url=" + url.QueryEscape("https://assets.tripo3d.com/m.glb"),
		},
		{"lookalike host untouched", "https://nottripo3d.com/m.glb", "https://nottripo3d.com/m.glb"},
		{
			"already proxied untouched",
			"https://api.sruim.xin/api/proxy-model?url=abc",
			"https://api.sruim.xin/api/proxy-model?url=abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_NeverInsecure(t *testing.T) {
	r := testRules()
	inputs := []string{
		"http://a.example/x.glb",
		"http://tripo3d.com/y.glb",
		"https://b.example/z.glb",
		"",
	}
	for _, in := range inputs {
		got := r.Normalize(in)
		if strings.HasPrefix(strings.ToLower(got), "http:") {
			t.Errorf("Normalize(%q) = %q, still insecure", in, got)
		}
		if r.onProxyHost(got) {
			t.Errorf("Normalize(%q) = %q, proxy host escaped rewrite", in, got)
		}
	}
}

func TestNormalize_NoFallbackKeepsEmpty(t *testing.T) {
	r := testRules()
	r.Fallback = ""
	if got := r.Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q, want empty", got)
	}
}

func TestIsProxy(t *testing.T) {
	r := testRules()
	if !r.IsProxy("https://api.sruim.xin/api/proxy-model?url=x") {
		t.Error("expected proxy url to be detected")
	}
	if r.IsProxy("https://api.sruim.xin/api/proxy-modelx") {
		t.Error("path prefix alone should not match")
	}
	if r.IsProxy("https://cdn.example/m.glb") {
		t.Error("unrelated url detected as proxy")
	}
	if (ModelURLRules{}).IsProxy("https://api.sruim.xin/api/proxy-model?url=x") {
		t.Error("rules without base url should never match")
	}
}
