package genome

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the UTC layout embedded in version sort keys. Fixed
// width microseconds keep keys lexically sortable.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Sort key grammar.
const (
	VersionPrefix  = "VERSION#"
	CurrentKey     = "CURRENT"
	chatSegment    = "#CHAT#"
	challengerSeg  = "#CHALLENGER#attempt-"
	ticketSegment  = "#TICKET#"
	challengerBase = "#CHALLENGER#"
)

// KeyKind identifies which entity a sort key addresses.
type KeyKind int

const (
	KindUnknown KeyKind = iota
	KindVersion
	KindChat
	KindChallenger
	KindTicket
	KindCurrent
)

// String returns the entity type tag for the kind.
func (k KeyKind) String() string {
	switch k {
	case KindVersion:
		return EntityGenome
	case KindChat:
		return EntityChat
	case KindChallenger:
		return EntityChallenger
	case KindTicket:
		return EntityTicket
	case KindCurrent:
		return EntityPointer
	default:
		return "Unknown"
	}
}

// Key is a parsed sort key.
type Key struct {
	Kind KeyKind

	// VersionSK is the owning top-level version key (empty for CURRENT).
	VersionSK string

	// Timestamp is the timestamp part of VersionSK.
	Timestamp string

	ConversationID string
	Attempt        int
	TicketID       string
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// VersionKey returns the sort key of a version created at t.
func VersionKey(t time.Time) string {
	return VersionPrefix + FormatTimestamp(t)
}

// ChatKey returns the sort key of a conversation served by versionSK.
func ChatKey(versionSK, conversationID string) string {
	return versionSK + chatSegment + conversationID
}

// ChallengerKey returns the sort key of a challenger nested under versionSK.
func ChallengerKey(versionSK string, attempt int) string {
	return versionSK + challengerSeg + strconv.Itoa(attempt)
}

// TicketKey returns the sort key of a ticket filed against versionSK.
func TicketKey(versionSK, ticketID string) string {
	return versionSK + ticketSegment + ticketID
}

// ChatPrefix returns the prefix shared by all chats of versionSK.
func ChatPrefix(versionSK string) string { return versionSK + chatSegment }

// ChallengerPrefix returns the prefix shared by all challengers of versionSK.
func ChallengerPrefix(versionSK string) string { return versionSK + challengerBase }

// TicketPrefix returns the prefix shared by all tickets of versionSK.
func TicketPrefix(versionSK string) string { return versionSK + ticketSegment }

// ParseKey parses a sort key according to the lineage key grammar.
func ParseKey(sk string) (Key, error) {
	if sk == CurrentKey {
		return Key{Kind: KindCurrent}, nil
	}
	if !strings.HasPrefix(sk, VersionPrefix) {
		return Key{}, NewValidationError("sk", fmt.Sprintf("malformed sort key %q", sk))
	}

	rest := sk[len(VersionPrefix):]
	ts, suffix, hasSuffix := strings.Cut(rest, "#")
	if ts == "" {
		return Key{}, NewValidationError("sk", fmt.Sprintf("sort key %q has no timestamp", sk))
	}

	key := Key{
		VersionSK: VersionPrefix + ts,
		Timestamp: ts,
	}
	if !hasSuffix {
		key.Kind = KindVersion
		return key, nil
	}

	suffix = "#" + suffix
	switch {
	case strings.HasPrefix(suffix, chatSegment):
		key.Kind = KindChat
		key.ConversationID = suffix[len(chatSegment):]
		if key.ConversationID == "" {
			return Key{}, NewValidationError("sk", fmt.Sprintf("chat key %q has no conversation id", sk))
		}
	case strings.HasPrefix(suffix, challengerSeg):
		n, err := strconv.Atoi(suffix[len(challengerSeg):])
		if err != nil || n < 1 {
			return Key{}, NewValidationError("sk", fmt.Sprintf("challenger key %q has invalid attempt", sk))
		}
		key.Kind = KindChallenger
		key.Attempt = n
	case strings.HasPrefix(suffix, ticketSegment):
		key.Kind = KindTicket
		key.TicketID = suffix[len(ticketSegment):]
		if key.TicketID == "" {
			return Key{}, NewValidationError("sk", fmt.Sprintf("ticket key %q has no ticket id", sk))
		}
	default:
		return Key{}, NewValidationError("sk", fmt.Sprintf("unknown sort key suffix in %q", sk))
	}
	return key, nil
}

// OwningVersion returns the top-level version key that sk is nested under,
// e.g. the genome that served a chat.
func OwningVersion(sk string) (string, error) {
	key, err := ParseKey(sk)
	if err != nil {
		return "", err
	}
	if key.Kind == KindCurrent {
		return "", NewValidationError("sk", "CURRENT is not nested under a version")
	}
	return key.VersionSK, nil
}

// VersionFromChat derives the genome key from a chat key by stripping the
// conversation suffix.
func VersionFromChat(chatSK string) (string, error) {
	key, err := ParseKey(chatSK)
	if err != nil {
		return "", err
	}
	if key.Kind != KindChat {
		return "", NewValidationError("chat_sk", fmt.Sprintf("%q is not a chat key", chatSK))
	}
	return key.VersionSK, nil
}
