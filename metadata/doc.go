// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package metadata defines the skill metadata record consumed by dependency
resolution and the Client boundary through which it is looked up.

Implementations live with their transports: registry.Client speaks the HTTP
registry API and skills.Registry (oci/skills) reads OCI manifest annotations.
Both can be wrapped in a CachingClient so repeated resolutions in one
process do not re-query the remote service.

Clients must be safe for concurrent use and idempotent: the same name
returns the same record for a given point in time.
*/
package metadata
