// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package middleware holds the HTTP middleware shared by every route:
// request-ID propagation into the logging context, Prometheus request
// instrumentation and structured access logs. Cross-cutting concerns
// with off-the-shelf chi implementations (CORS, rate limiting) are
// wired directly in the router instead.
package middleware
