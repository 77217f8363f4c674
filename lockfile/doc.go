// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package lockfile reads, merges and atomically writes the skills lock file.

The lock file is the single record of what is installed. It lives at
{installRoot}/skills-lock.json and holds one record per top-level install,
each carrying the dependency tree that install resolved:

	{
	  "lockfileVersion": 1,
	  "generatedAt": 1767225600,
	  "installLocation": "/home/me/.local/share/toolhive/skills/installed",
	  "skills": [
	    {
	      "name": "deploy",
	      "version": "1.2.0",
	      "bundleId": "...",
	      "installedAt": 1767225600,
	      "installedPath": ".../installed/deploy",
	      "isDirectDependency": true,
	      "dependencies": [ ... ]
	    }
	  ]
	}

Values are passed explicitly: Read returns a *LockFile, Merge returns a new
one and Write persists it through a temporary file and a rename, so readers
never observe a partially written file. Both directions are validated against
an embedded JSON schema that tolerates unknown fields, keeping older readers
compatible with newer files.

No file locking is performed; a single writer per install root is assumed.
*/
package lockfile
