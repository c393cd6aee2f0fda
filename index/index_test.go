package index

import (
	"net/url"
	"testing"

	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

func TestBuildIndexURL(t *testing.T) {
	got, err := buildIndexURL("https://registry.example/")
	if err != nil {
		t.Fatalf("buildIndexURL: %v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if u.Path != "/index/static" {
		t.Errorf("path = %q, want /index/static", u.Path)
	}

	q := u.Query()
	for key, want := range map[string]string{
		"label:org.flatpak.ref:exists": "1",
		"os":                           "linux",
		"tag":                          "latest",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("query %q = %q, want %q", key, got, want)
		}
	}

	if q.Get("architecture") == "" {
		t.Errorf("architecture query param missing")
	}
}

func TestParseIndexResponse(t *testing.T) {
	body := []byte(`{
		"Results": [
			{
				"Name": "quay.io/example/platform",
				"Images": [
					{
						"Digest": "sha256:deadbeef",
						"Labels": {
							"org.flatpak.ref": "runtime/org.example.Platform/x86_64/24.08",
							"org.flatpak.metadata": "[Runtime]\ncommand=bash\n"
						}
					}
				]
			}
		]
	}`)

	table, err := parseIndexResponse(body)
	if err != nil {
		t.Fatalf("parseIndexResponse: %v", err)
	}

	r, err := ref.Parse("runtime/org.example.Platform/x86_64/24.08")
	if err != nil {
		t.Fatalf("ref.Parse: %v", err)
	}

	entry, ok := table[r]
	if !ok {
		t.Fatalf("table missing entry for %s", r)
	}

	if want := "quay.io/example/platform@sha256:deadbeef"; entry.Image != want {
		t.Errorf("Image = %q, want %q", entry.Image, want)
	}
}

func TestParseIndexResponseSkipsUnparseableRefs(t *testing.T) {
	body := []byte(`{
		"Results": [
			{
				"Name": "quay.io/example/broken",
				"Images": [
					{"Digest": "sha256:aaa", "Labels": {"org.flatpak.ref": "not-a-ref", "org.flatpak.metadata": ""}}
				]
			}
		]
	}`)

	table, err := parseIndexResponse(body)
	if err != nil {
		t.Fatalf("parseIndexResponse: %v", err)
	}

	if len(table) != 0 {
		t.Errorf("table = %v, want empty", table)
	}
}
