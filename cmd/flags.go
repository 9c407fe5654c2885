package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/usecase/lifecycle"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

func parseTime(raw string) (time.Time, error) {
	text := strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339 or 2006-01-02", raw)
}

func optionalTimeFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

func optionalMoneyFlag(cmd *cobra.Command, name string) (*workorder.Money, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	m, err := workorder.ParseMoney(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &m, nil
}

// parsePartSpec reads "<catalog-id>:<qty>[:<unit-cost>]" or
// "direct:<description>:<qty>:<unit-cost>".
func parsePartSpec(spec string) (lifecycle.PartRequest, error) {
	fields := strings.Split(strings.TrimSpace(spec), ":")
	if len(fields) > 0 && strings.EqualFold(fields[0], "direct") {
		if len(fields) != 4 {
			return lifecycle.PartRequest{}, fmt.Errorf("part %q: want direct:<description>:<qty>:<unit-cost>", spec)
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		if err != nil {
			return lifecycle.PartRequest{}, fmt.Errorf("part %q: bad quantity: %w", spec, err)
		}
		cost, err := workorder.ParseMoney(fields[3])
		if err != nil {
			return lifecycle.PartRequest{}, fmt.Errorf("part %q: %w", spec, err)
		}
		return lifecycle.PartRequest{Description: strings.TrimSpace(fields[1]), Quantity: qty, UnitCost: &cost}, nil
	}

	if len(fields) < 2 || len(fields) > 3 {
		return lifecycle.PartRequest{}, fmt.Errorf("part %q: want <catalog-id>:<qty>[:<unit-cost>]", spec)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return lifecycle.PartRequest{}, fmt.Errorf("part %q: bad catalog id: %w", spec, err)
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return lifecycle.PartRequest{}, fmt.Errorf("part %q: bad quantity: %w", spec, err)
	}
	part := lifecycle.PartRequest{CatalogPartID: &id, Quantity: qty}
	if len(fields) == 3 {
		cost, err := workorder.ParseMoney(fields[2])
		if err != nil {
			return lifecycle.PartRequest{}, fmt.Errorf("part %q: %w", spec, err)
		}
		part.UnitCost = &cost
	}
	return part, nil
}
