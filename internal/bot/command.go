package bot

import (
	"regexp"
	"strings"
	"sync"

	"mew/plugins/brightwheel-agent/internal/brightwheel"
)

// Command is one parsed brightwheel request.
type Command struct {
	// Filter limits the fetch to one activity kind; empty means everything.
	Filter brightwheel.ActionType
}

var commandKinds = map[string]struct{}{
	"checkin": {},
	"photo":   {},
	"video":   {},
	"potty":   {},
	"nap":     {},
	"food":    {},
	"kudo":    {},
}

// ParseCommand recognizes "brightwheel" / "bw", optionally followed by
// exactly one activity kind (a trailing "s" is tolerated, so "photos" works).
// Anything else is not a command and draws no reply.
func ParseCommand(content string) (Command, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 || len(fields) > 2 {
		return Command{}, false
	}

	switch strings.ToLower(fields[0]) {
	case "brightwheel", "bw":
	default:
		return Command{}, false
	}

	if len(fields) == 1 {
		return Command{}, true
	}

	kind := strings.TrimSuffix(strings.ToLower(fields[1]), "s")
	if _, ok := commandKinds[kind]; !ok {
		return Command{}, false
	}
	return Command{Filter: brightwheel.ActionTypeForKind(kind)}, true
}

var mentionRECache sync.Map // key: botUserID string -> *regexp.Regexp

// stripLeadingBotMention removes a leading <@botUserID> mention. ok is false
// when the content does not start with one.
func stripLeadingBotMention(content, botUserID string) (rest string, ok bool) {
	if strings.TrimSpace(botUserID) == "" {
		return "", false
	}
	reAny, _ := mentionRECache.LoadOrStore(botUserID, regexp.MustCompile(`^\s*<@!?`+regexp.QuoteMeta(botUserID)+`>\s*`))
	re := reAny.(*regexp.Regexp)
	loc := re.FindStringIndex(content)
	if loc == nil || loc[0] != 0 {
		return "", false
	}
	rest = strings.TrimSpace(content[loc[1]:])
	if rest == "" {
		return "", false
	}
	return rest, true
}
