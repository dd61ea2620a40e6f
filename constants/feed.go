package constants

import "strings"

// Feed identifies one of the two source exports that feed the pipeline.
type Feed string

// Stable values (store these exact strings in DB).
const (
	FeedPraxedo Feed = "PRAXEDO" // field-technician execution export
	FeedPIDI    Feed = "PIDI"    // logistics / attachment export
)

// Feeds lists the known feeds in pipeline order.
var Feeds = []Feed{FeedPraxedo, FeedPIDI}

// ParseFeed resolves a user-supplied feed name, case-insensitively.
func ParseFeed(s string) (Feed, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FeedPraxedo):
		return FeedPraxedo, true
	case string(FeedPIDI):
		return FeedPIDI, true
	}
	return "", false
}
