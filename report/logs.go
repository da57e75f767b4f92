package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogStats summarises one day of service logs
type LogStats struct {
	Day                  string
	FilesRead            int
	Outcomes             map[string]int
	DepositsCredited     int
	PaymentTransitions   int
	Rejected             int
	Failed               int
	GatewayFailures      int
	NotificationFailures int
	InvalidTokens        int
	ErrorPatterns        map[string]int
}

type logLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

var (
	outcomeRe   = regexp.MustCompile(`^\[[^\]]*\] (\w+) (\w+): `)
	requestIDRe = regexp.MustCompile(`^\[[^\]]*\] `)
)

// AnalyzeLogs reads the info and error logs written for day under dir.
// Missing files are skipped.
func AnalyzeLogs(dir string, day time.Time) (*LogStats, error) {
	stats := newLogStats(day.Format("2006-01-02"))

	for _, name := range []string{"info", "error"} {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.log", name, stats.Day))
		file, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error opening log file %s: %w", path, err)
		}
		err = analyzeLines(file, stats)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading log file %s: %w", path, err)
		}
		stats.FilesRead++
	}

	return stats, nil
}

func newLogStats(day string) *LogStats {
	return &LogStats{
		Day:           day,
		Outcomes:      make(map[string]int),
		ErrorPatterns: make(map[string]int),
	}
}

func analyzeLines(r io.Reader, stats *LogStats) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		msg := line.Msg

		switch {
		case strings.Contains(msg, "Reconciliation rejected:"):
			stats.Rejected++
		case strings.Contains(msg, "Reconciliation failed:"):
			stats.Failed++
		case strings.HasPrefix(msg, "Deposit ") && strings.Contains(msg, " credited: "):
			stats.DepositsCredited++
		case strings.HasPrefix(msg, "Payment ") && strings.Contains(msg, " moved "):
			stats.PaymentTransitions++
		case strings.HasPrefix(msg, "Invalid token"):
			stats.InvalidTokens++
		default:
			if m := outcomeRe.FindStringSubmatch(msg); m != nil {
				stats.Outcomes[m[1]+" "+m[2]]++
			}
		}

		if strings.HasPrefix(msg, "Capture of gateway order") || strings.HasPrefix(msg, "Failed to create gateway order") {
			stats.GatewayFailures++
		}
		if strings.Contains(msg, "otification") && strings.Contains(msg, "failed") {
			stats.NotificationFailures++
		}
		if line.Level == "error" {
			stats.ErrorPatterns[errorPattern(msg)]++
		}
	}
	return scanner.Err()
}

// errorPattern drops the request ID and everything after the first colon so
// repeats of the same failure group together
func errorPattern(msg string) string {
	msg = requestIDRe.ReplaceAllString(msg, "")
	if i := strings.Index(msg, ":"); i > 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

// PrintLogStats writes a plain text report
func PrintLogStats(w io.Writer, stats *LogStats) {
	fmt.Fprintln(w, "\n=== Log Analysis Report ===")
	fmt.Fprintf(w, "Day: %s (%d log files)\n", stats.Day, stats.FilesRead)

	fmt.Fprintln(w, "\n1. Reconciliation Outcomes:")
	printTop(w, stats.Outcomes, 0, "requests")

	fmt.Fprintln(w, "\n2. Ledger:")
	fmt.Fprintf(w, "   Deposits Credited: %d\n", stats.DepositsCredited)
	fmt.Fprintf(w, "   Payment Transitions: %d\n", stats.PaymentTransitions)

	fmt.Fprintln(w, "\n3. Problems:")
	fmt.Fprintf(w, "   Rejected Requests: %d\n", stats.Rejected)
	fmt.Fprintf(w, "   Failed Requests: %d\n", stats.Failed)
	fmt.Fprintf(w, "   Gateway Failures: %d\n", stats.GatewayFailures)
	fmt.Fprintf(w, "   Notification Failures: %d\n", stats.NotificationFailures)
	fmt.Fprintf(w, "   Invalid Tokens: %d\n", stats.InvalidTokens)

	fmt.Fprintln(w, "\n4. Most Common Errors:")
	printTop(w, stats.ErrorPatterns, 5, "occurrences")
}

func printTop(w io.Writer, counts map[string]int, limit int, unit string) {
	type entry struct {
		key   string
		count int
	}

	var entries []entry
	for k, n := range counts {
		entries = append(entries, entry{k, n})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})

	for i, e := range entries {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(w, "   %s: %d %s\n", e.key, e.count, unit)
	}
}
