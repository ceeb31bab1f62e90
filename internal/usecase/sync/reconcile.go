package sync

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
)

// Recompute relinks every cached device to fleet assets from scratch.
// Matching is deliberately simple: the first asset whose normalized number
// is a substring of the device's normalized name wins. First match, not
// best match. Prior links are fully cleared before relinking, so assets
// with no current match end the pass with an empty equipment set.
// O(assets x cache rows); acceptable at expected fleet scale.
func (s *Service) Recompute(ctx context.Context) error {
	assets, err := s.fleet.ListAssets(ctx)
	if err != nil {
		return err
	}

	rows, err := s.cache.ListAll(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, len(assets))
	for i := range assets {
		keys[i] = matchKey(assets[i].Number)
		assets[i].Equipment = []string{}
	}

	var linked []telemetry.LinkedDevice
	for _, row := range rows {
		name := matchKey(row.Name)
		if name == "" {
			continue
		}
		for i, key := range keys {
			if key == "" || !strings.Contains(name, key) {
				continue
			}
			linked = append(linked, telemetry.LinkedDevice{
				Provider:   row.Provider,
				ExternalID: row.ExternalID,
			})
			assets[i].Equipment = append(assets[i].Equipment,
				fmt.Sprintf("%s:%d", row.Provider, row.ExternalID))
			break
		}
	}

	if err := s.fleet.SaveLinks(ctx, linked, assets); err != nil {
		return err
	}

	logger.Info("Reconciliation completed",
		zap.Int("assets", len(assets)),
		zap.Int("cache_rows", len(rows)),
		zap.Int("linked", len(linked)),
	)
	return nil
}

// matchKey folds a name or asset number to uppercase alphanumerics only,
// so "AB 1234 | spare" and "ab-1234" compare equal.
func matchKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
