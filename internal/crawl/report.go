package crawl

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	successReportName = ".lastrun.success.json"
	failedReportName  = ".lastrun.failed.json"
)

type FailedEntry struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
	Reason string `json:"reason"`
}

func writeRunReport(dir string, successList []string, failedList []FailedEntry) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if len(successList) > 0 {
		p := filepath.Join(dir, successReportName)
		data, err := json.MarshalIndent(successList, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			return err
		}
		slog.Info("report wrote success", "path", p, "jobs", len(successList))
	}
	if len(failedList) > 0 {
		p := filepath.Join(dir, failedReportName)
		data, err := json.MarshalIndent(failedList, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			return err
		}
		slog.Info("report wrote failed", "path", p, "count", len(failedList))
	}
	return nil
}

func joinFailedReasons(failedList []FailedEntry) string {
	if len(failedList) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failedList {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Symbol)
		b.WriteString("-")
		b.WriteString(f.Period)
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if i >= 4 && len(failedList) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failedList)-5))
			break
		}
	}
	return b.String()
}
