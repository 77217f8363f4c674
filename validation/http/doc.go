// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package http validates the user-supplied HTTP settings of the remote skill
registry and bundle gateway clients: base endpoint URLs and extra request
headers (for example an API key header).

	if err := http.ValidateEndpointURL(cfg.Registry.URL); err != nil {
		return err
	}
	for name, value := range cfg.Registry.Headers {
		if err := http.ValidateHeader(name, value); err != nil {
			return err
		}
	}

Header checks reject CRLF injection, control characters and non-token
names (RFC 7230), with length limits of 256 bytes for names and 8192 bytes
for values.
*/
package http
