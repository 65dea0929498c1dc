/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package chart

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"helm.sh/helm/v3/pkg/action"
	helmchart "helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/registry"
)

// Puller downloads helm charts from https repositories or OCI registries
// into a local cache directory.
type Puller struct {
	registryClient *registry.Client
	settings       *cli.EnvSettings
	cacheDir       string
}

// NewPuller creates a Puller caching charts below the user cache directory.
func NewPuller() (*Puller, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "error determining cache directory")
	}
	return NewPullerWithCacheDir(filepath.Join(userCacheDir, "bdm", "charts"))
}

// NewPullerWithCacheDir creates a Puller caching charts below the given directory.
func NewPullerWithCacheDir(cacheDir string) (*Puller, error) {
	registryClient, err := registry.NewClient(registry.ClientOptEnableCache(true))
	if err != nil {
		return nil, errors.Wrap(err, "error creating registry client")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "error creating chart cache directory")
	}
	return &Puller{
		registryClient: registryClient,
		settings:       &cli.EnvSettings{RepositoryCache: filepath.Join(cacheDir, "repository")},
		cacheDir:       cacheDir,
	}, nil
}

// Pull fetches the given chart into the local cache and returns the path of
// the downloaded archive. Pinned versions are served from the cache on
// subsequent calls; an empty version means latest and is always re-pulled.
func (p *Puller) Pull(ctx context.Context, repository string, name string, version string) (string, error) {
	path := p.cachePath(repository, name, version)
	if version != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "error checking cached chart %s", path)
		}
	}

	tempDir, err := os.MkdirTemp("", "bdm-chart-")
	if err != nil {
		return "", errors.Wrap(err, "error creating temporary directory")
	}
	defer os.RemoveAll(tempDir)

	pull := action.NewPullWithOpts(action.WithConfig(&action.Configuration{RegistryClient: p.registryClient}))
	pull.Settings = p.settings
	pull.Untar = false
	pull.DestDir = tempDir
	pull.Version = version

	// OCI references carry the repository; https repositories go into the
	// action's RepoURL and the chart is located through the repository index.
	ref := name
	if registry.IsOCI(repository) {
		ref = strings.TrimSuffix(repository, "/") + "/" + name
	} else {
		pull.RepoURL = repository
	}

	done := make(chan error, 1)
	go func() {
		_, err := pull.Run(ref)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", errors.Wrapf(err, "error pulling chart %s from %s", name, repository)
		}
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return "", errors.Wrap(err, "error reading pull output")
	}
	if len(entries) != 1 {
		return "", errors.Errorf("unexpected pull output; expected one archive, got %d files", len(entries))
	}
	if err := moveFile(filepath.Join(tempDir, entries[0].Name()), path); err != nil {
		return "", errors.Wrap(err, "error storing chart in cache")
	}

	return path, nil
}

// Get pulls and loads the chart in one step.
func (p *Puller) Get(ctx context.Context, repository string, name string, version string) (*helmchart.Chart, error) {
	path, err := p.Pull(ctx, repository, name, version)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load reads a chart from an archive or an unpacked chart directory.
func Load(path string) (*helmchart.Chart, error) {
	chart, err := loader.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading chart %s", path)
	}
	return chart, nil
}

func (p *Puller) cachePath(repository string, name string, version string) string {
	sum := sha256.Sum256([]byte(repository + "\n" + name + "\n" + version))
	if version == "" {
		return filepath.Join(p.cacheDir, fmt.Sprintf("%s-%x.tgz", name, sum[:8]))
	}
	return filepath.Join(p.cacheDir, fmt.Sprintf("%s-%s-%x.tgz", name, version, sum[:8]))
}

// moveFile renames, and falls back to a copy when source and target are on
// different filesystems.
func moveFile(src string, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, raw, 0o644)
}
