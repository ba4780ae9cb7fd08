// Package store provides sqlite-backed storage implementations.
package store

import "github.com/user/meetscribe/internal/types"

// Compile-time interface compliance checks.
var _ types.MeetingStore = (*MeetingStore)(nil)
var _ types.SegmentStore = (*SegmentStore)(nil)
var _ types.MinutesStore = (*MinutesStore)(nil)
var _ types.ActionItemStore = (*ActionItemStore)(nil)
