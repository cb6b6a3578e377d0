package urlutil

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestBuildAbsolute_JoinsWithSingleSlash(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := fmt.Sprintf(
			"%s://%s:%d%s",
			rapid.SampledFrom([]string{"http", "https"}).Draw(rt, "scheme"),
			rapid.StringMatching(`[a-z]{3,12}`).Draw(rt, "host"),
			rapid.IntRange(1024, 9999).Draw(rt, "port"),
			rapid.SampledFrom([]string{"", "/", "//"}).Draw(rt, "trailing"),
		)
		segment := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "segment")
		leading := rapid.Bool().Draw(rt, "leading")
		path := segment
		if leading {
			path = "/" + segment
		}

		got := BuildAbsolute(base, path)
		want := strings.TrimRight(base, "/") + "/" + segment
		if got != want {
			rt.Fatalf("BuildAbsolute(%q, %q) = %q, want %q", base, path, got, want)
		}
	})
}

func TestBuildAbsolute_KeepsAbsolutePaths(t *testing.T) {
	got := BuildAbsolute("http://localhost:3000", "https://cdn.example.com/x.png")
	if got != "https://cdn.example.com/x.png" {
		t.Fatalf("absolute path rewritten: %s", got)
	}
	if got := BuildAbsolute(" http://localhost:3000/ ", ""); got != "http://localhost:3000" {
		t.Fatalf("empty path should return normalized base, got %s", got)
	}
}

func TestValidateBaseURL(t *testing.T) {
	valid := []string{
		"http://localhost:3000",
		"https://staging.wealthlog.example/",
		"http://127.0.0.1:8080/app",
	}
	for _, base := range valid {
		if err := ValidateBaseURL(base); err != nil {
			t.Errorf("ValidateBaseURL(%q) unexpected error: %v", base, err)
		}
	}

	invalid := []string{
		"",
		"localhost:3000",
		"ftp://localhost",
		"http://",
		"http://localhost:3000?x=1",
		"http://localhost:3000#top",
	}
	for _, base := range invalid {
		if err := ValidateBaseURL(base); err == nil {
			t.Errorf("ValidateBaseURL(%q) expected error", base)
		}
	}
}

func TestPathOf(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000/login":         "/login",
		"http://localhost:3000/login?next=/d": "/login",
		"http://localhost:3000":               "/",
		"%zz":                                 "",
	}
	for in, want := range cases {
		if got := PathOf(in); got != want {
			t.Errorf("PathOf(%q) = %q, want %q", in, got, want)
		}
	}
}
