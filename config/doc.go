// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package config loads the installer configuration.

Values come from three layers, later ones winning: built-in defaults, the
YAML file (by default $XDG_CONFIG_HOME/toolhive/skills.yaml) and
TOOLHIVE_SKILLS_* environment variables. A missing file is not an error.

	install_root: /opt/skills
	max_depth: 6
	concurrency: 8
	policy: '!skill.name.startsWith("experimental-")'
	metadata:
	  backend: registry
	bundles:
	  backend: s3
	registry:
	  url: https://registry.example.com
	  headers:
	    X-API-Key: secret
	s3:
	  endpoint: minio.internal:9000
	  bucket: skills
	fetch:
	  attempt_timeout: 30s
	  attempts: 3

Environment overrides:

	TOOLHIVE_SKILLS_INSTALL_ROOT   install_root
	TOOLHIVE_SKILLS_REGISTRY_URL   registry.url
	TOOLHIVE_SKILLS_GATEWAY_URL    gateway.url
	TOOLHIVE_SKILLS_MAX_DEPTH      max_depth
	TOOLHIVE_SKILLS_CONCURRENCY    concurrency
	TOOLHIVE_SKILLS_LOG_LEVEL      log_level
	TOOLHIVE_SKILLS_POLICY         policy
	TOOLHIVE_SKILLS_S3_ACCESS_KEY  s3.access_key
	TOOLHIVE_SKILLS_S3_SECRET_KEY  s3.secret_key
*/
package config
