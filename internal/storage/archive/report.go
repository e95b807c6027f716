package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/newthinker/etfadvisor/internal/core"
)

// ReportPrefix is the root of all archived reports.
const ReportPrefix = "reports"

// ReportKey returns reports/YYYY/MM/DD/<runID>.json for a run date in
// core.DateLayout.
func ReportKey(runDate, runID string) (string, error) {
	d, err := time.Parse(core.DateLayout, runDate)
	if err != nil {
		return "", core.WrapError(core.ErrInvalidInput, fmt.Errorf("run date %q: %w", runDate, err))
	}
	if runID == "" || strings.ContainsAny(runID, `/\`) {
		return "", core.WrapError(core.ErrInvalidInput, fmt.Errorf("invalid run id %q", runID))
	}
	return fmt.Sprintf("%s/%s/%s.json", ReportPrefix, d.Format("2006/01/02"), runID), nil
}

// DayPrefix returns the prefix holding every report of one run date.
func DayPrefix(runDate string) (string, error) {
	d, err := time.Parse(core.DateLayout, runDate)
	if err != nil {
		return "", core.WrapError(core.ErrInvalidInput, fmt.Errorf("run date %q: %w", runDate, err))
	}
	return ReportPrefix + "/" + d.Format("2006/01/02"), nil
}

// SaveReport writes the report as indented JSON and returns its key.
func SaveReport(ctx context.Context, s Storage, r *core.Report) (string, error) {
	key, err := ReportKey(r.RunDate, r.RunID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}
	if err := s.Write(ctx, key, data); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, fmt.Errorf("writing %s: %w", key, err))
	}
	return key, nil
}

// LoadReport reads one archived report.
func LoadReport(ctx context.Context, s Storage, key string) (*core.Report, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("reading %s: %w", key, err))
	}
	var r core.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("decoding %s: %w", key, err))
	}
	return &r, nil
}

// LatestReport loads the newest report under prefix. Keys sort by date;
// among the runs of the last day the highest GeneratedAt wins.
func LatestReport(ctx context.Context, s Storage, prefix string) (*core.Report, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}

	var latest *core.Report
	day := ""
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		if day == "" {
			day = path.Dir(key)
		} else if path.Dir(key) != day {
			break
		}

		r, err := LoadReport(ctx, s, key)
		if err != nil {
			return nil, err
		}
		if latest == nil || r.GeneratedAt.After(latest.GeneratedAt) {
			latest = r
		}
	}

	if latest == nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no reports under %s", prefix))
	}
	return latest, nil
}
