package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/distribution/reference"
	digest "github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/allisonkarlitskaya/flatpak-go/manifest"
	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

// Installer pulls an OCI image (manifest + config + layer blobs) referenced
// by an index entry into the local Store.
//
// This is a minimal, registry-v2-only client: no multi-arch index
// resolution, no retry/backoff, no chunked blob download. It exists to
// exercise the OCI type definitions and digest/reference-validation
// libraries end to end for list/search/info/install/run, not to replace a
// production registry client.
type Installer struct {
	store      *Store
	httpClient *http.Client
}

// NewInstaller constructs an Installer writing into store.
func NewInstaller(store *Store, client *http.Client) *Installer {
	if client == nil {
		client = http.DefaultClient
	}

	return &Installer{store: store, httpClient: client}
}

// ImageLocator names one registry image, as found in an index response: a
// digest plus the repository it lives in.
type ImageLocator struct {
	Repository string
	Digest     digest.Digest
}

// InstallRef pulls the image named by loc and records it in the store under
// r.
//
// Per original_source/src/install.rs, the repository's "https" scheme is
// rewritten to "docker" before talking to the registry, and distribution/reference
// validates/normalizes the resulting image reference.
func (in *Installer) InstallRef(ctx context.Context, r ref.Ref, loc ImageLocator) error {
	dockerRepo := strings.Replace(loc.Repository, "https://", "docker://", 1)

	named, err := reference.ParseNormalizedNamed(strings.TrimPrefix(dockerRepo, "docker://"))
	if err != nil {
		return fmt.Errorf("installer: invalid repository %q: %w", loc.Repository, err)
	}

	if err := loc.Digest.Validate(); err != nil {
		return fmt.Errorf("installer: invalid digest %q: %w", loc.Digest, err)
	}

	manifestBytes, err := in.fetchBlob(ctx, named.Name(), loc.Digest)
	if err != nil {
		return fmt.Errorf("installer: fetch manifest: %w", err)
	}

	var ociManifest v1.Manifest
	if err := json.Unmarshal(manifestBytes, &ociManifest); err != nil {
		return fmt.Errorf("installer: parse manifest: %w", err)
	}

	configBytes, err := in.fetchBlob(ctx, named.Name(), ociManifest.Config.Digest)
	if err != nil {
		return fmt.Errorf("installer: fetch config: %w", err)
	}

	var config v1.Image
	if err := json.Unmarshal(configBytes, &config); err != nil {
		return fmt.Errorf("installer: parse config: %w", err)
	}

	metadataContent, err := in.findMetadataLabel(config)
	if err != nil {
		return fmt.Errorf("installer: %w", err)
	}

	if _, err := manifest.Parse(metadataContent); err != nil {
		return fmt.Errorf("installer: invalid metadata in image: %w", err)
	}

	metadataDigest, err := in.store.PutObject([]byte(metadataContent))
	if err != nil {
		return fmt.Errorf("installer: store metadata: %w", err)
	}

	root, err := in.pullLayers(ctx, named.Name(), ociManifest)
	if err != nil {
		return fmt.Errorf("installer: pull layers: %w", err)
	}

	return in.store.PutRef(r, Tree{Root: root, Metadata: metadataDigest})
}

// findMetadataLabel extracts the "metadata" label original_source/src/index.rs
// records alongside each image's ref, used here as the canonical location of
// the manifest document bundled with an installed image.
func (in *Installer) findMetadataLabel(config v1.Image) (string, error) {
	if config.Config.Labels == nil {
		return "", fmt.Errorf("image config has no labels")
	}

	metadata, ok := config.Config.Labels["org.flatpak.metadata"]
	if !ok {
		return "", fmt.Errorf("image config has no org.flatpak.metadata label")
	}

	return metadata, nil
}

// pullLayers fetches every layer blob, stores it as an object, and
// synthesizes a flat root Node with one read-only file child per layer,
// named by the first 12 hex characters of the layer digest. Layer archives
// are not unpacked: their contents do not appear in the tree.
func (in *Installer) pullLayers(ctx context.Context, repo string, m v1.Manifest) (Node, error) {
	root := Node{Name: "/", Children: map[string]Node{}}

	for _, layer := range m.Layers {
		data, err := in.fetchBlob(ctx, repo, layer.Digest)
		if err != nil {
			return Node{}, fmt.Errorf("fetch layer %s: %w", layer.Digest, err)
		}

		layerDigest, err := in.store.PutObject(data)
		if err != nil {
			return Node{}, fmt.Errorf("store layer %s: %w", layer.Digest, err)
		}

		name := layer.Digest.Encoded()[:12]
		root.Children[name] = Node{Name: name, Mode: 0o444, Digest: layerDigest, Size: layer.Size}
	}

	return root, nil
}

// fetchBlob downloads a content-addressed blob from a registry-v2-shaped
// endpoint: GET /v2/{repo}/blobs/{digest}.
func (in *Installer) fetchBlob(ctx context.Context, repo string, d digest.Digest) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blob digest %q: %w", d, err)
	}

	host, path, _ := strings.Cut(repo, "/")
	url := fmt.Sprintf("https://%s/v2/%s/blobs/%s", host, path, d)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	verifier := d.Verifier()

	buf := make([]byte, 0, 64*1024)

	tmp := make([]byte, 32*1024)

	for {
		n, readErr := resp.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)

			if _, err := verifier.Write(tmp[:n]); err != nil {
				return nil, err
			}
		}

		if readErr != nil {
			break
		}
	}

	if !verifier.Verified() {
		return nil, fmt.Errorf("blob %s failed digest verification", d)
	}

	return buf, nil
}
