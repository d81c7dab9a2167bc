package repository

import "go.opentelemetry.io/otel"

// Package-level tracer; picks up the globally registered provider.
var tracer = otel.Tracer("github.com/urlmint/urlmint/internal/repository")
