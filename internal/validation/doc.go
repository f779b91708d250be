// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package validation wraps go-playground/validator behind a shared
// instance and translates tag failures into the API's error shape.
package validation
