/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package kustomize

import (
	"bytes"
	"context"
	"io"
	"io/fs"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/kustomize/api/krusty"
	kustypes "sigs.k8s.io/kustomize/api/types"
	kustfsys "sigs.k8s.io/kustomize/kyaml/filesys"

	"github.com/sap/besu-devnet-manager/internal/kustomize"
	"github.com/sap/besu-devnet-manager/pkg/cluster"
	"github.com/sap/besu-devnet-manager/pkg/manifests"
	"github.com/sap/besu-devnet-manager/pkg/types"
)

// KustomizeGeneratorOptions allows to tweak the behavior of the kustomize generator.
type KustomizeGeneratorOptions struct {
	TemplateSuffix *string
	// If defined, the given left delimiter will be used to parse go templates; otherwise, defaults to '{{'
	LeftTemplateDelimiter *string
	// If defined, the given right delimiter will be used to parse go templates; otherwise, defaults to '}}'
	RightTemplateDelimiter *string
}

// KustomizeGenerator is a Generator implementation that basically renders a given Kustomization.
type KustomizeGenerator struct {
	client        cluster.Client
	kustomization *kustomize.Kustomization
	kustomizer    *krusty.Kustomizer
}

var _ manifests.Generator = &KustomizeGenerator{}

// Create a new KustomizeGenerator.
// The client may be nil; then the lookup template function returns empty results, and kubernetesVersion and
// apiResources render empty (that is how offline rendering works).
// If fsys is nil, the local operating system filesystem will be used, and kustomizationPath can be an absolute or relative path (in the latter case it will be considered
// relative to the current working directory). If fsys is non-nil, then kustomizationPath should be a relative path; if an absolute path is supplied, it will be turned
// into a relative path by stripping the leading slash. If fsys is specified as a real filesystem, it is recommended to use os.Root.FS() instead of os.DirFS(), in order
// to fence symbolic links. An empty kustomizationPath will be treated like ".".
func NewKustomizeGenerator(fsys fs.FS, kustomizationPath string, clnt cluster.Client, options KustomizeGeneratorOptions) (*KustomizeGenerator, error) {
	kustomization, err := kustomize.ParseKustomization(fsys, kustomizationPath, kustomize.KustomizationOptions{
		TemplateSuffix:         options.TemplateSuffix,
		LeftTemplateDelimiter:  options.LeftTemplateDelimiter,
		RightTemplateDelimiter: options.RightTemplateDelimiter,
	})
	if err != nil {
		return nil, err
	}

	kustomizerOptions := &krusty.Options{
		LoadRestrictions: kustypes.LoadRestrictionsNone,
		PluginConfig:     kustypes.DisabledPluginConfig(),
	}
	kustomizer := krusty.MakeKustomizer(kustomizerOptions)

	return &KustomizeGenerator{
		client:        clnt,
		kustomization: kustomization,
		kustomizer:    kustomizer,
	}, nil
}

// Create a new KustomizeGenerator as TransformableGenerator.
func NewTransformableKustomizeGenerator(fsys fs.FS, kustomizationPath string, clnt cluster.Client, options KustomizeGeneratorOptions) (manifests.TransformableGenerator, error) {
	g, err := NewKustomizeGenerator(fsys, kustomizationPath, clnt, options)
	if err != nil {
		return nil, err
	}
	return manifests.NewGenerator(g), nil
}

// Create a new KustomizeGenerator with a ParameterTransformer attached (further transformers can be attached to the returned generator object).
func NewKustomizeGeneratorWithParameterTransformer(fsys fs.FS, kustomizationPath string, clnt cluster.Client, options KustomizeGeneratorOptions, transformer manifests.ParameterTransformer) (manifests.TransformableGenerator, error) {
	g, err := NewTransformableKustomizeGenerator(fsys, kustomizationPath, clnt, options)
	if err != nil {
		return nil, err
	}
	return g.WithParameterTransformer(transformer), nil
}

// Create a new KustomizeGenerator with an ObjectTransformer attached (further transformers can be attached to the returned generator object).
func NewKustomizeGeneratorWithObjectTransformer(fsys fs.FS, kustomizationPath string, clnt cluster.Client, options KustomizeGeneratorOptions, transformer manifests.ObjectTransformer) (manifests.TransformableGenerator, error) {
	g, err := NewTransformableKustomizeGenerator(fsys, kustomizationPath, clnt, options)
	if err != nil {
		return nil, err
	}
	return g.WithObjectTransformer(transformer), nil
}

// Generate resource descriptors.
func (g *KustomizeGenerator) Generate(ctx context.Context, namespace string, name string, parameters types.Unstructurable) ([]client.Object, error) {
	var objects []client.Object
	fsys := kustfsys.MakeFsInMemory()

	renderContext := kustomize.RenderContext{
		Namespace:  namespace,
		Name:       name,
		Parameters: parameters.ToUnstructured(),
	}
	if g.client != nil {
		renderContext.Client = g.client
		renderContext.DiscoveryClient = g.client.DiscoveryClient()
	}

	if err := g.kustomization.Render(renderContext, fsys); err != nil {
		return nil, err
	}

	resmap, err := g.kustomizer.Run(fsys, g.kustomization.Path())
	if err != nil {
		return nil, err
	}

	raw, err := resmap.AsYaml()
	if err != nil {
		return nil, err
	}

	decoder := utilyaml.NewYAMLToJSONDecoder(bytes.NewBuffer(raw))
	for {
		object := &unstructured.Unstructured{}
		if err := decoder.Decode(&object.Object); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if object.Object == nil {
			continue
		}
		objects = append(objects, object)
	}

	return objects, nil
}
