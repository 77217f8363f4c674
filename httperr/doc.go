// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package httperr attaches HTTP status codes to errors returned by the remote
skill registry and bundle gateway clients, so that callers further up the
stack can decide whether a failure is worth retrying without parsing
messages.

	resp, err := client.Do(req)
	...
	if resp.StatusCode != http.StatusOK {
		return httperr.New("unexpected status from gateway", resp.StatusCode)
	}

	// later, in the retry loop
	if !httperr.IsTransient(err) {
		return backoff.Permanent(err)
	}

CodedError supports errors.Is and errors.As through Unwrap.
*/
package httperr
