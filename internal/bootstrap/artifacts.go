package bootstrap

import (
	"context"

	"hostboot/internal/archive"
	"hostboot/internal/download"
	"hostboot/internal/integrity"
)

// Artifacts is the download-verify-unpack capability the toolchain steps use.
type Artifacts interface {
	Fetch(ctx context.Context, url, dest string, onProgress download.ProgressFunc) error
	Verify(path, digest string) (bool, error)
	Install(ctx context.Context, req archive.Request) error
}

// NetArtifacts fetches over HTTP and unpacks on local disk.
type NetArtifacts struct {
	Fetcher *download.Fetcher
}

func (a NetArtifacts) Fetch(ctx context.Context, url, dest string, onProgress download.ProgressFunc) error {
	return a.Fetcher.Fetch(ctx, url, dest, onProgress)
}

func (NetArtifacts) Verify(path, digest string) (bool, error) {
	return integrity.VerifySHA256(path, digest)
}

func (NetArtifacts) Install(ctx context.Context, req archive.Request) error {
	return archive.Install(ctx, req)
}

var _ Artifacts = NetArtifacts{}
