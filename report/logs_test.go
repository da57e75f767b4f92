package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const infoLog = `{"level":"info","ts":"2026-03-14T09:30:00.000Z","caller":"controllers/webhook_controller.go:63","msg":"[r1] capture_deposit applied: Deposit credited"}
{"level":"info","ts":"2026-03-14T09:30:00.000Z","caller":"store/ledger.go:115","msg":"Deposit D1 credited: amount=100000 wallet=1 balance=100000"}
{"level":"info","ts":"2026-03-14T09:30:01.000Z","caller":"controllers/webhook_controller.go:63","msg":"[r2] capture_deposit already_processed: Deposit already credited"}
{"level":"info","ts":"2026-03-14T09:30:02.000Z","caller":"store/ledger.go:229","msg":"Payment 4 moved pending -> completed"}
{"level":"info","ts":"2026-03-14T09:30:02.000Z","caller":"controllers/webhook_controller.go:63","msg":"[r3] checkout_completed applied: Payment completed"}
{"level":"warn","ts":"2026-03-14T09:30:03.000Z","caller":"controllers/webhook_controller.go:57","msg":"[r4] Reconciliation rejected: malformed payload: missing depositId"}
not json at all
`

const errorLog = `{"level":"error","ts":"2026-03-14T09:31:00.000Z","caller":"reconcile/engine.go:394","msg":"Capture of gateway order O1 for deposit D2 failed: paypal: capture order: 503"}
{"level":"error","ts":"2026-03-14T09:31:00.000Z","caller":"controllers/webhook_controller.go:55","msg":"[r5] Reconciliation failed: paypal: capture order: 503"}
{"level":"error","ts":"2026-03-14T09:32:00.000Z","caller":"controllers/webhook_controller.go:55","msg":"[r6] Reconciliation failed: store failure"}
{"level":"error","ts":"2026-03-14T09:33:00.000Z","caller":"notify/dispatcher.go:91","msg":"Notification webhook failed for D1: connection refused"}
{"level":"error","ts":"2026-03-14T09:34:00.000Z","caller":"middleware/auth.go:34","msg":"Invalid token: signature is invalid"}
`

func TestAnalyzeLogs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info-2026-03-14.log"), []byte(infoLog), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "error-2026-03-14.log"), []byte(errorLog), 0644))

	stats, err := AnalyzeLogs(dir, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesRead)
	assert.Equal(t, 1, stats.Outcomes["capture_deposit applied"])
	assert.Equal(t, 1, stats.Outcomes["capture_deposit already_processed"])
	assert.Equal(t, 1, stats.Outcomes["checkout_completed applied"])
	assert.Equal(t, 1, stats.DepositsCredited)
	assert.Equal(t, 1, stats.PaymentTransitions)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.GatewayFailures)
	assert.Equal(t, 1, stats.NotificationFailures)
	assert.Equal(t, 1, stats.InvalidTokens)
	assert.Equal(t, 2, stats.ErrorPatterns["Reconciliation failed"])
	assert.Equal(t, 1, stats.ErrorPatterns["Capture of gateway order O1 for deposit D2 failed"])

	var buf bytes.Buffer
	PrintLogStats(&buf, stats)
	out := buf.String()
	assert.Contains(t, out, "Day: 2026-03-14 (2 log files)")
	assert.Contains(t, out, "Deposits Credited: 1")
	assert.True(t, strings.Index(out, "Reconciliation failed: 2 occurrences") < strings.Index(out, "Invalid token: 1 occurrences"))
}

func TestAnalyzeLogsMissingFiles(t *testing.T) {
	stats, err := AnalyzeLogs(t.TempDir(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesRead)
	assert.Empty(t, stats.Outcomes)
}
