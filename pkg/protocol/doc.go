// Package protocol defines the wire types exchanged between a capability host
// and a capability provider.
//
// Messages are JSON-RPC 2.0 objects framed one per line. Either side may issue
// requests; every request carrying an id receives exactly one response with
// the same id.
//
// # Package Organization
//
//   - jsonrpc.go: request, response and notification envelopes
//   - methods.go: method names and lifecycle payloads
//   - schema.go: ordered parameter schemas shared by tools and elicitation
//   - tools.go, resources.go, prompts.go: capability descriptors and payloads
//   - sampling.go: the provider-to-host generate-completion exchange
//
// # Message Flow
//
//  1. The host spawns the provider and sends initialize
//  2. The host lists tools, resources, resource templates and prompts
//  3. The host invokes capabilities with call-tool, read-resource and get-prompt
//  4. While serving a call, the provider may send generate-completion back
//     to the host over the same channel
package protocol
