package domain

import "time"

// Purpose scopes a watermark to one consumer of a source's records.
type Purpose string

// PurposeIngestion tracks the newest record persisted for a source.
const PurposeIngestion Purpose = "ingestion"

// ChannelPurpose names the watermark purpose of a notification channel.
func ChannelPurpose(channel string) Purpose {
	return Purpose("notify:" + channel)
}

// Watermark is the timestamp boundary below which a source's records are
// considered already handled for one purpose. LastTimestamp is monotonically
// non-decreasing except through an explicit rollback.
type Watermark struct {
	Source        Source
	Purpose       Purpose
	LastTimestamp time.Time
	UpdatedAt     time.Time
	Metadata      map[string]string
}
