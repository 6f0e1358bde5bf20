package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordCompile(120, 3*time.Millisecond)
	RecordRun("ok", 2*time.Second)
	RecordFault("deadline_missed")
	RecordDecode(4096)
}
