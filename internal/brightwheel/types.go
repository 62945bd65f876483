package brightwheel

import (
	"strings"
	"time"
)

// ActionType is the wire tag identifying what kind of event an activity
// records. The server may introduce tags outside the known set; callers must
// treat unknown tags as renderable pass-through values, not errors.
type ActionType string

const (
	ActionCheckin ActionType = "ac_checkin"
	ActionPhoto   ActionType = "ac_photo"
	ActionVideo   ActionType = "ac_video"
	ActionPotty   ActionType = "ac_potty"
	ActionNap     ActionType = "ac_nap"
	ActionFood    ActionType = "ac_food"
	ActionKudo    ActionType = "ac_kudo"
)

const actionPrefix = "ac_"

// ActionTypeForKind maps a bare command keyword ("checkin", "photo", ...) to
// its wire tag.
func ActionTypeForKind(kind string) ActionType {
	return ActionType(actionPrefix + strings.ToLower(strings.TrimSpace(kind)))
}

// Kind returns the tag without the common wire prefix. Tags that don't carry
// the prefix come back unchanged.
func (a ActionType) Kind() string {
	return strings.TrimPrefix(string(a), actionPrefix)
}

// StateActive is the flag value meaning "checked in" / "nap started".
// Anything else means the opposite.
const StateActive = "1"

type Person struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Media struct {
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type VideoInfo struct {
	DownloadableURL string `json:"downloadable_url"`
	ThumbnailURL    string `json:"thumbnail_url"`
}

type PottyDetails struct {
	PottyType   string   `json:"potty_type"`
	PottyExtras []string `json:"potty_extras"`
}

type MenuItemTag struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// Activity is one timestamped event recorded against a student. Which of the
// optional payload fields are populated depends on ActionType, but nothing
// here enforces that: the feed is loosely typed and the formatter has to cope
// with any combination.
type Activity struct {
	ObjectID   string     `json:"object_id"`
	ActionType ActionType `json:"action_type"`
	State      string     `json:"state"`
	Note       string     `json:"note"`
	EventDate  time.Time  `json:"event_date"`
	Actor      Person     `json:"actor"`
	Target     Person     `json:"target"`

	Media        *Media        `json:"media"`
	VideoInfo    *VideoInfo    `json:"video_info"`
	Details      *PottyDetails `json:"details_blob"`
	MenuItemTags []MenuItemTag `json:"menu_item_tags"`
}

// ActivityPage is one page of a student's feed, newest first as delivered by
// the server. Count is the server's own total for the page.
type ActivityPage struct {
	Activities []Activity `json:"activities"`
	Count      int        `json:"count"`
}

type Student struct {
	ObjectID  string `json:"object_id"`
	FirstName string `json:"first_name"`
}

// Guardian is the subset of the users/me response the client needs.
type Guardian struct {
	ObjectID string `json:"object_id"`
}

// studentEntry matches the guardians/{id}/students response, which wraps each
// student record one level deep.
type studentEntry struct {
	Student Student `json:"student"`
}

type studentList struct {
	Students []studentEntry `json:"students"`
}
