// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package registry is a metadata.Client for the ToolHive skills registry HTTP API.

The client resolves a skill name with GET {base}/v1/skills/{name}. Responses
are validated against an embedded JSON schema before they are decoded, a 404
is reported as "not found" rather than an error, and transient failures are
retried with exponential backoff:

	client, err := registry.NewClient("https://registry.example.com",
		registry.WithHeader("Authorization", "Bearer "+token))
	meta, found, err := client.Lookup(ctx, "pdf-processor")

The bundle id of a skill is its bundleId field or, when absent, the first
package carrying a digest, rendered as "identifier@digest".
*/
package registry
