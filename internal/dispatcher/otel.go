package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/WCArena/pudscan/internal/dispatcher"

// globalMeter is used when New is given no meter; it is a no-op until an
// OTel meter provider is installed.
func globalMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}
