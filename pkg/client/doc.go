// Package client is the host side of a provider session.
//
// A Session wraps one transport.Conn. It performs the initialize handshake,
// takes a point-in-time Snapshot of the provider's tools, resources,
// resource templates and prompts, and proxies invocations:
//
//	session, err := client.ConnectProcess(ctx, "userhub-provider", nil,
//	    client.WithCompletionHandler(client.SamplingFromModel(model)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	snapshot, err := session.Discover(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, tool := range snapshot.Tools {
//	    fmt.Println(tool.DisplayName())
//	}
//
// # Sampling
//
// Providers may ask the host to run a model completion while they are
// serving a call. Installing a CompletionHandler declares the sampling
// capability during initialize and answers generate-completion requests
// on the same connection, so a tool that samples still completes.
package client
