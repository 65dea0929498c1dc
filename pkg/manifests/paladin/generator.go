/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package paladin

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sap/go-generics/slices"

	"helm.sh/helm/v3/pkg/action"
	helmchart "helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/discovery"
	"sigs.k8s.io/controller-runtime/pkg/client"
	kyaml "sigs.k8s.io/yaml"

	"github.com/sap/besu-devnet-manager/internal/helm"
	"github.com/sap/besu-devnet-manager/pkg/cluster"
	"github.com/sap/besu-devnet-manager/pkg/manifests"
	"github.com/sap/besu-devnet-manager/pkg/network"
	"github.com/sap/besu-devnet-manager/pkg/types"
)

// fullName must match the name the command line passes to the applier;
// it prefixes all labels and annotations understood by the applier.
const fullName = "bdm.cs.sap.com"

// The Besu network occupies apply orders zero and one. Chart objects are placed
// after it, leaving room below for pre hooks; hook weights map to the orders
// applyOrderBase-201..applyOrderBase-1 (pre) and applyOrderBase+1..applyOrderBase+201 (post).
const applyOrderBase = 2 + (helm.HookMaxWeight - helm.HookMinWeight + 1)

// Generator is a Generator implementation that renders the Paladin chart of a network.
// The chart is rendered client-only through the helm SDK, and helm hooks are translated
// into the annotations understood by the applier; hooks are ordered relative to the
// regular chart objects according to their weight, pre-delete and post-delete hooks
// are not supported.
// Note: Generator's Generate() method expects the network revision to be set in the
// passed context; see manifests.NewContextWithRevision().
type Generator struct {
	chart   *helmchart.Chart
	paladin *network.Paladin
	client  cluster.Client
}

var _ manifests.Generator = &Generator{}

// Create a new Generator for the given (already loaded) chart.
// The client may be nil; then the chart is rendered with default capabilities
// (that is how offline rendering works); otherwise the kube version and the
// available API versions are taken from the cluster.
func NewGenerator(chrt *helmchart.Chart, paladin *network.Paladin, clnt cluster.Client) *Generator {
	return &Generator{chart: chrt, paladin: paladin, client: clnt}
}

// Generate resource descriptors.
func (g *Generator) Generate(ctx context.Context, namespace string, name string, parameters types.Unstructurable) ([]client.Object, error) {
	revision, err := manifests.RevisionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	isInstall := revision == 1

	values, err := g.buildValues(parameters)
	if err != nil {
		return nil, err
	}

	renderedObjects, err := g.render(namespace, name, values)
	if err != nil {
		return nil, err
	}

	annotationKeyReconcilePolicy := fullName + "/" + types.AnnotationKeySuffixReconcilePolicy
	annotationKeyUpdatePolicy := fullName + "/" + types.AnnotationKeySuffixUpdatePolicy
	annotationKeyDeletePolicy := fullName + "/" + types.AnnotationKeySuffixDeletePolicy
	annotationKeyApplyOrder := fullName + "/" + types.AnnotationKeySuffixApplyOrder
	annotationKeyPurgeOrder := fullName + "/" + types.AnnotationKeySuffixPurgeOrder
	annotationKeyDeleteOrder := fullName + "/" + types.AnnotationKeySuffixDeleteOrder

	var objects []client.Object
	for _, object := range renderedObjects {
		annotations := object.GetAnnotations()
		for key := range annotations {
			if strings.HasPrefix(key, fullName+"/") {
				return nil, errors.Errorf("annotation %s must not be set (object: %s)", key, types.ObjectKeyToString(object))
			}
		}
		if annotations == nil {
			annotations = map[string]string{}
		}
		annotations[annotationKeyApplyOrder] = strconv.Itoa(applyOrderBase)
		// chart objects are torn down before the network itself
		annotations[annotationKeyDeleteOrder] = strconv.Itoa(-1)

		resourceMetadata, err := helm.ParseResourceMetadata(object)
		if err != nil {
			return nil, err
		}
		if resourceMetadata.Policy == helm.ResourcePolicyKeep {
			annotations[annotationKeyDeletePolicy] = types.DeletePolicyOrphan
		}

		hookMetadata, err := helm.ParseHookMetadata(object)
		if err != nil {
			return nil, err
		}
		if hookMetadata != nil {
			if slices.Contains(hookMetadata.Types, helm.HookTypePreDelete) {
				return nil, errors.Errorf("helm hook type %s not supported (object: %s)", helm.HookTypePreDelete, types.ObjectKeyToString(object))
			}
			if slices.Contains(hookMetadata.Types, helm.HookTypePostDelete) {
				return nil, errors.Errorf("helm hook type %s not supported (object: %s)", helm.HookTypePostDelete, types.ObjectKeyToString(object))
			}
			hookMetadata.Types = slices.Remove(hookMetadata.Types, helm.HookTypePreRollback)
			hookMetadata.Types = slices.Remove(hookMetadata.Types, helm.HookTypePostRollback)
			hookMetadata.Types = slices.Remove(hookMetadata.Types, helm.HookTypeTest)
			hookMetadata.Types = slices.Remove(hookMetadata.Types, helm.HookTypeTestSuccess)
			if len(hookMetadata.Types) == 0 {
				continue
			}
			if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyHookFailed) {
				return nil, errors.Errorf("helm hook deletion policy %s not supported (object: %s)", helm.HookDeletePolicyHookFailed, types.ObjectKeyToString(object))
			}
			if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyBeforeHookCreation) {
				annotations[annotationKeyUpdatePolicy] = types.UpdatePolicyRecreate
			}
			switch {
			case slices.Contains(hookMetadata.Types, helm.HookTypePreInstall) && slices.Contains(hookMetadata.Types, helm.HookTypePostInstall):
				annotations[annotationKeyReconcilePolicy] = types.ReconcilePolicyOnce
				annotations[annotationKeyApplyOrder] = strconv.Itoa(applyOrderBase + hookMetadata.Weight - helm.HookMaxWeight - 1)
				if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyHookSucceeded) {
					annotations[annotationKeyPurgeOrder] = strconv.Itoa(applyOrderBase + helm.HookMaxWeight - helm.HookMinWeight + 1)
				}
			case slices.Contains(hookMetadata.Types, helm.HookTypePreInstall):
				annotations[annotationKeyReconcilePolicy] = types.ReconcilePolicyOnce
				annotations[annotationKeyApplyOrder] = strconv.Itoa(applyOrderBase + hookMetadata.Weight - helm.HookMaxWeight - 1)
				if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyHookSucceeded) {
					annotations[annotationKeyPurgeOrder] = strconv.Itoa(applyOrderBase - 1)
				}
			case slices.Contains(hookMetadata.Types, helm.HookTypePostInstall):
				annotations[annotationKeyReconcilePolicy] = types.ReconcilePolicyOnce
				annotations[annotationKeyApplyOrder] = strconv.Itoa(applyOrderBase + hookMetadata.Weight - helm.HookMinWeight + 1)
				if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyHookSucceeded) {
					annotations[annotationKeyPurgeOrder] = strconv.Itoa(applyOrderBase + helm.HookMaxWeight - helm.HookMinWeight + 1)
				}
			default:
				if isInstall {
					// the object only carries hook types that are meaningless on initial deployment
					continue
				}
			}
			if !isInstall {
				switch {
				case slices.Contains(hookMetadata.Types, helm.HookTypePreUpgrade) && slices.Contains(hookMetadata.Types, helm.HookTypePostUpgrade):
					annotations[annotationKeyReconcilePolicy] = types.ReconcilePolicyOnObjectOrNetworkChange
					annotations[annotationKeyApplyOrder] = strconv.Itoa(applyOrderBase + hookMetadata.Weight - helm.HookMaxWeight - 1)
					if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyHookSucceeded) {
						annotations[annotationKeyPurgeOrder] = strconv.Itoa(applyOrderBase + helm.HookMaxWeight - helm.HookMinWeight + 1)
					}
				case slices.Contains(hookMetadata.Types, helm.HookTypePreUpgrade):
					annotations[annotationKeyReconcilePolicy] = types.ReconcilePolicyOnObjectOrNetworkChange
					annotations[annotationKeyApplyOrder] = strconv.Itoa(applyOrderBase + hookMetadata.Weight - helm.HookMaxWeight - 1)
					if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyHookSucceeded) {
						annotations[annotationKeyPurgeOrder] = strconv.Itoa(applyOrderBase - 1)
					}
				case slices.Contains(hookMetadata.Types, helm.HookTypePostUpgrade):
					annotations[annotationKeyReconcilePolicy] = types.ReconcilePolicyOnObjectOrNetworkChange
					annotations[annotationKeyApplyOrder] = strconv.Itoa(applyOrderBase + hookMetadata.Weight - helm.HookMinWeight + 1)
					if slices.Contains(hookMetadata.DeletePolicies, helm.HookDeletePolicyHookSucceeded) {
						annotations[annotationKeyPurgeOrder] = strconv.Itoa(applyOrderBase + helm.HookMaxWeight - helm.HookMinWeight + 1)
					}
				default:
					// nothing to do, just keep the object
					// this is reached if there are only pre/post-install hooks defined
				}
			}
		}
		object.SetAnnotations(annotations)
		objects = append(objects, object)
	}

	return objects, nil
}

// Chart values are layered; values files come first (in the order given),
// then the inline values of the network, then the supplied parameters.
func (g *Generator) buildValues(parameters types.Unstructurable) (map[string]any, error) {
	values := map[string]any{}
	for _, path := range g.paladin.ValuesFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading values file %s", path)
		}
		fileValues := map[string]any{}
		if err := kyaml.Unmarshal(raw, &fileValues); err != nil {
			return nil, errors.Wrapf(err, "error parsing values file %s", path)
		}
		manifests.MergeMapInto(values, fileValues)
	}
	manifests.MergeMapInto(values, g.paladin.Values)
	if parameters != nil {
		manifests.MergeMapInto(values, parameters.ToUnstructured())
	}
	return values, nil
}

// Render the chart with a client-only install action (the equivalent of helm template)
// and decode the resulting manifest, hooks included, into unstructured objects.
func (g *Generator) render(namespace string, name string, values map[string]any) ([]client.Object, error) {
	install := action.NewInstall(&action.Configuration{})
	install.DryRun = true
	install.DryRunOption = "client"
	install.ClientOnly = true
	install.IncludeCRDs = true
	install.DisableOpenAPIValidation = true
	install.ReleaseName = name
	install.Namespace = namespace

	if g.client != nil {
		kubeVersion, apiVersions, err := serverCapabilities(g.client.DiscoveryClient())
		if err != nil {
			return nil, errors.Wrap(err, "error reading cluster capabilities")
		}
		install.KubeVersion = kubeVersion
		install.APIVersions = apiVersions
	}

	release, err := install.Run(g.chart, values)
	if err != nil {
		return nil, errors.Wrapf(err, "error rendering chart %s", g.chart.Name())
	}

	manifest := release.Manifest
	for _, hook := range release.Hooks {
		if hook == nil {
			continue
		}
		manifest += "\n---\n" + hook.Manifest
	}

	var objects []client.Object
	decoder := utilyaml.NewYAMLToJSONDecoder(strings.NewReader(manifest))
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

// Determine the kube version and the set of available API versions from the
// discovery client, the same way helm populates the chart capabilities for a
// real installation.
func serverCapabilities(discoveryClient discovery.DiscoveryInterface) (*chartutil.KubeVersion, chartutil.VersionSet, error) {
	serverVersion, err := discoveryClient.ServerVersion()
	if err != nil {
		return nil, nil, err
	}
	kubeVersion := &chartutil.KubeVersion{
		Version: serverVersion.GitVersion,
		Major:   serverVersion.Major,
		Minor:   serverVersion.Minor,
	}

	groups, resources, err := discoveryClient.ServerGroupsAndResources()
	if err != nil && !discovery.IsGroupDiscoveryFailedError(err) {
		return nil, nil, err
	}
	var apiVersions []string
	for _, group := range groups {
		for _, version := range group.Versions {
			apiVersions = append(apiVersions, version.GroupVersion)
		}
	}
	for _, list := range resources {
		for _, resource := range list.APIResources {
			apiVersions = append(apiVersions, list.GroupVersion+"/"+resource.Kind)
		}
	}

	return kubeVersion, chartutil.VersionSet(apiVersions), nil
}
