/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package portforward

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// PortForward is one active port-forwarding tunnel to a single pod.
type PortForward struct {
	localPort uint16
	stopCh    chan struct{}
	closeOnce sync.Once
}

// New opens a port-forwarding tunnel to the given pod, listening on a random
// local port, and blocks until the tunnel is ready. Callers must Close the
// returned PortForward when done.
func New(ctx context.Context, config *rest.Config, namespace string, pod string, port uint16) (*PortForward, error) {
	transport, upgrader, err := spdy.RoundTripperFor(config)
	if err != nil {
		return nil, errors.Wrap(err, "error creating spdy round tripper")
	}
	target, _, err := rest.DefaultServerUrlFor(config)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing api server url")
	}
	target.Path = path.Join(target.Path, "api/v1/namespaces", namespace, "pods", pod, "portforward")
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, target)

	stopCh := make(chan struct{})
	readyCh := make(chan struct{})
	forwarder, err := portforward.New(dialer, []string{fmt.Sprintf("0:%d", port)}, stopCh, readyCh, io.Discard, io.Discard)
	if err != nil {
		return nil, errors.Wrap(err, "error creating port forwarder")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- forwarder.ForwardPorts()
	}()

	select {
	case <-readyCh:
	case err := <-errCh:
		return nil, errors.Wrapf(err, "error forwarding port %d to pod %s/%s", port, namespace, pod)
	case <-ctx.Done():
		close(stopCh)
		return nil, ctx.Err()
	}

	ports, err := forwarder.GetPorts()
	if err != nil {
		close(stopCh)
		return nil, errors.Wrap(err, "error retrieving forwarded ports")
	}
	if len(ports) != 1 {
		close(stopCh)
		return nil, errors.Errorf("unexpected number of forwarded ports: %d", len(ports))
	}

	return &PortForward{localPort: ports[0].Local, stopCh: stopCh}, nil
}

// LocalPort returns the local port the tunnel listens on.
func (f *PortForward) LocalPort() uint16 {
	return f.localPort
}

// Close terminates the tunnel. It is safe to call Close more than once.
func (f *PortForward) Close() {
	f.closeOnce.Do(func() {
		close(f.stopCh)
	})
}
