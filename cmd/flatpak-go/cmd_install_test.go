package main

import (
	"testing"

	digest "github.com/opencontainers/go-digest"

	"github.com/allisonkarlitskaya/flatpak-go/store"
)

func TestImageLocator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		repositoryBase string
		image          string
		want           store.ImageLocator
		wantErr        bool
	}{
		{
			name:           "trailing slash on base, no leading slash on name",
			repositoryBase: "https://registry.fedoraproject.org/",
			image:          "quay.io/example/platform@sha256:" + dummyHex,
			want: store.ImageLocator{
				Repository: "https://registry.fedoraproject.org/quay.io/example/platform",
				Digest:     digest.Digest("sha256:" + dummyHex),
			},
		},
		{
			name:           "no trailing slash on base, leading slash on name",
			repositoryBase: "https://registry.fedoraproject.org",
			image:          "/quay.io/example/platform@sha256:" + dummyHex,
			want: store.ImageLocator{
				Repository: "https://registry.fedoraproject.org/quay.io/example/platform",
				Digest:     digest.Digest("sha256:" + dummyHex),
			},
		},
		{
			name:           "missing digest separator is an error",
			repositoryBase: "https://registry.fedoraproject.org/",
			image:          "quay.io/example/platform",
			wantErr:        true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := imageLocator(tc.repositoryBase, tc.image)

			if tc.wantErr {
				if err == nil {
					t.Fatal("imageLocator() expected error, got nil")
				}

				return
			}

			if err != nil {
				t.Fatalf("imageLocator() unexpected error: %v", err)
			}

			if got != tc.want {
				t.Errorf("imageLocator() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

const dummyHex = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
