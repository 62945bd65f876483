// Package format renders Brightwheel activities as chat messages. Render is a
// pure function: no I/O, no state, and no failure path — anything the feed
// throws at it comes back as some renderable message.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"mew/plugins/brightwheel-agent/internal/brightwheel"
)

// OutputMode selects the rendering surface. It is decided once per command
// invocation by the dispatcher, never inferred here.
type OutputMode int

const (
	// ModeText renders one plain text line per activity.
	ModeText OutputMode = iota
	// ModeCard renders a structured card with the text line as fallback.
	ModeCard
)

// Message is one rendered activity. Text is always populated; Card is set
// only in ModeCard.
type Message struct {
	Text string
	Card *Card
}

// Card mirrors the structured attachment shape of the chat surface.
type Card struct {
	Title      string
	Text       string
	Footer     string
	FooterIcon string
	AuthorName string
	TS         int64 // event time, whole seconds since epoch

	TitleLink string
	ImageURL  string
	ThumbURL  string
}

// Payload is the wire form of the card for typed chat messages. Empty media
// fields are omitted so the frontend can branch on presence.
func (c *Card) Payload() map[string]any {
	p := map[string]any{
		"title":       c.Title,
		"footer":      c.Footer,
		"footer_icon": c.FooterIcon,
		"author_name": c.AuthorName,
		"ts":          strconv.FormatInt(c.TS, 10),
	}
	if c.Text != "" {
		p["text"] = c.Text
	}
	if c.TitleLink != "" {
		p["title_link"] = c.TitleLink
	}
	if c.ImageURL != "" {
		p["image_url"] = c.ImageURL
	}
	if c.ThumbURL != "" {
		p["thumb_url"] = c.ThumbURL
	}
	return p
}

const (
	cardFooter     = "Brightwheel"
	cardFooterIcon = "https://github.com/brightwheel.png"

	// timeLayout matches the feed's human-readable style, e.g. "Jul 21, 2021 11:30 AM".
	timeLayout = "Jan 2, 2006 3:04 PM"
)

// Render maps one activity to a chat message.
//
// The text line always starts with the student's first name and ends with
// " | {event time}". The card carries the event time as a numeric ts field
// instead and uses the kind-specific sentence as its title. Unknown action
// types degrade into a pass-through line rather than failing.
func Render(a brightwheel.Activity, mode OutputMode) Message {
	card := Card{
		Title:      "Activity",
		Footer:     cardFooter,
		FooterIcon: cardFooterIcon,
		AuthorName: strings.TrimSpace(a.Actor.FirstName + " " + a.Actor.LastName),
		TS:         a.EventDate.Unix(),
	}

	var text string
	switch a.ActionType {
	case brightwheel.ActionCheckin:
		card.Title = fmt.Sprintf("%s was checked %s.", a.Target.FirstName, inOrOut(a.State))
		text = card.Title
	case brightwheel.ActionPhoto:
		card.Title = a.Target.FirstName + " was in a photo."
		text = card.Title + " - " + imageURL(a.Media)
	case brightwheel.ActionVideo:
		card.Title = a.Target.FirstName + " was in a video."
		text = card.Title + " - " + downloadURL(a.VideoInfo)
	case brightwheel.ActionPotty:
		detail := pottyDetail(a.Details)
		card.Title = a.Target.FirstName + " went potty."
		card.Text = detail
		text = fmt.Sprintf("%s went potty. (%s)", a.Target.FirstName, detail)
	case brightwheel.ActionNap:
		card.Title = fmt.Sprintf("%s %s a nap.", a.Target.FirstName, startedOrEnded(a.State))
		text = card.Title
	case brightwheel.ActionFood:
		detail := foodDetail(a.MenuItemTags)
		card.Title = a.Target.FirstName + " ate."
		card.Text = detail
		text = fmt.Sprintf("%s ate %s.", a.Target.FirstName, detail)
	case brightwheel.ActionKudo:
		card.Title = a.Target.FirstName + " received kudos."
		text = card.Title
	default:
		card.Title = fmt.Sprintf("%s - %s", a.Target.FirstName, a.ActionType.Kind())
		text = card.Title
	}

	if a.Note != "" {
		text += " - " + a.Note
		card.Text = strings.TrimSpace(a.Note + "\n" + card.Text)
	}

	// Media attachment is orthogonal to the kind branch: any activity that
	// carries media gets the links, video info winning over a plain image.
	if a.Media != nil && a.Media.ImageURL != "" {
		card.TitleLink = a.Media.ImageURL
		card.ImageURL = a.Media.ImageURL
		card.ThumbURL = a.Media.ThumbnailURL
	}
	if a.VideoInfo != nil && a.VideoInfo.DownloadableURL != "" {
		card.TitleLink = a.VideoInfo.DownloadableURL
		card.ImageURL = a.VideoInfo.ThumbnailURL
		card.ThumbURL = a.VideoInfo.ThumbnailURL
	}

	text += " | " + a.EventDate.Format(timeLayout)

	if mode == ModeCard {
		return Message{Text: text, Card: &card}
	}
	return Message{Text: text}
}

func inOrOut(state string) string {
	if state == brightwheel.StateActive {
		return "in"
	}
	return "out"
}

func startedOrEnded(state string) string {
	if state == brightwheel.StateActive {
		return "started"
	}
	return "ended"
}

func pottyDetail(d *brightwheel.PottyDetails) string {
	if d == nil {
		return ""
	}
	return d.PottyType + " - " + strings.Join(d.PottyExtras, ", ")
}

// foodDetail joins the item names and appends the notes of the last listed
// item, and only the last one, as a trailing parenthetical. Notes on earlier
// items are not shown.
func foodDetail(items []brightwheel.MenuItemTag) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	detail := strings.Join(names, ", ")
	if len(items) > 0 {
		if notes := items[len(items)-1].Notes; notes != "" {
			detail += " (" + notes + ")"
		}
	}
	return detail
}

func imageURL(m *brightwheel.Media) string {
	if m == nil {
		return ""
	}
	return m.ImageURL
}

func downloadURL(v *brightwheel.VideoInfo) string {
	if v == nil {
		return ""
	}
	return v.DownloadableURL
}
