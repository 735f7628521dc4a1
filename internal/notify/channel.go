// Package notify detects newly stored records, routes them to the
// configured channels and delivers at most one message per (record,
// channel) pair.
package notify

import (
	"strings"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
)

// Kind selects a channel's routing rule set.
type Kind string

const (
	// KindDefault receives every record outside the health department
	// range, including records with no derivable department code.
	KindDefault Kind = "default"
	// KindHealth receives records whose department code falls in the
	// health range.
	KindHealth Kind = "health"
	// KindSupplies receives health records that additionally carry at
	// least one line item matching a configured code prefix.
	KindSupplies Kind = "supplies"
)

// Health departments occupy a fixed code block.
const (
	healthDeptLow  = 400
	healthDeptHigh = 499
)

// Channel is one outbound notification destination with its routing rules.
type Channel struct {
	Name             string
	Source           domain.Source
	Kind             Kind
	ChatIDs          []int64
	ItemCodePrefixes []string
	RequireOpenDate  bool
}

// ChannelFromConfig maps a configuration entry onto a routing channel.
// Unknown kinds fall back to the default rule set.
func ChannelFromConfig(c config.ChannelConfig) Channel {
	kind := Kind(c.Kind)
	switch kind {
	case KindDefault, KindHealth, KindSupplies:
	default:
		kind = KindDefault
	}
	return Channel{
		Name:             c.Name,
		Source:           domain.Source(c.Source),
		Kind:             kind,
		ChatIDs:          c.ChatIDs,
		ItemCodePrefixes: c.ItemCodePrefixes,
		RequireOpenDate:  c.RequireOpenDate,
	}
}

// Wants reports whether the record should be delivered on this channel.
func (c Channel) Wants(rec domain.Record, now time.Time) bool {
	if rec.Source != c.Source {
		return false
	}
	if c.RequireOpenDate && !opensAfter(rec, now) {
		return false
	}

	switch c.Kind {
	case KindHealth:
		return isHealth(rec)
	case KindSupplies:
		return isHealth(rec) && c.hasTargetItem(rec)
	default:
		// Records without a parseable department code route here.
		return !isHealth(rec)
	}
}

func isHealth(rec domain.Record) bool {
	if rec.DepartmentCode == nil {
		return false
	}
	code := *rec.DepartmentCode
	return code >= healthDeptLow && code <= healthDeptHigh
}

func (c Channel) hasTargetItem(rec domain.Record) bool {
	for _, item := range rec.Items() {
		for _, prefix := range c.ItemCodePrefixes {
			if strings.HasPrefix(item.ItemCode, prefix) {
				return true
			}
		}
	}
	return false
}

// portalDateLayout is the opening date format published by the portals,
// day first, with an " Hrs." suffix.
const portalDateLayout = "02/01/2006 15:04"

// opensAfter reports whether the record's opening act lies in the future.
// Records without a recognizable opening date are excluded.
func opensAfter(rec domain.Record, now time.Time) bool {
	raw := strings.TrimSpace(rec.SectionMap(domain.SectionSchedule)["fecha_acto_apertura"])
	if raw == "" {
		return false
	}

	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, " Hrs.", ""))
	if ts, err := time.Parse(portalDateLayout, cleaned); err == nil {
		return ts.After(now)
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.After(now)
	}
	return false
}
