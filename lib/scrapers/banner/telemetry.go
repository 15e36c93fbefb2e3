package banner

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("scrapers/banner")
