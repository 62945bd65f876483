package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"mew/plugins/brightwheel-agent/internal/brightwheel"
	"mew/plugins/brightwheel-agent/internal/format"
)

type fakeFeed struct {
	students   func(ctx context.Context) ([]brightwheel.Student, error)
	activities func(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error)
}

func (f *fakeFeed) Students(ctx context.Context) ([]brightwheel.Student, error) {
	return f.students(ctx)
}

func (f *fakeFeed) Activities(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error) {
	return f.activities(ctx, studentID, filter)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []format.Message
	channels []string
}

func (p *recordingPublisher) Publish(_ context.Context, channelID string, msg format.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	p.channels = append(p.channels, channelID)
	return nil
}

func kudoActivity(id string) brightwheel.Activity {
	a := brightwheel.Activity{
		ObjectID:   id,
		ActionType: brightwheel.ActionKudo,
		Target:     brightwheel.Person{FirstName: "Jenny"},
	}
	return a
}

func TestDispatcher_RepliesPerActivityInOrder(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		students: func(ctx context.Context) ([]brightwheel.Student, error) {
			return []brightwheel.Student{{ObjectID: "s1", FirstName: "Jenny"}}, nil
		},
		activities: func(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error) {
			return brightwheel.ActivityPage{
				Activities: []brightwheel.Activity{kudoActivity("a1"), kudoActivity("a2"), kudoActivity("a3")},
				Count:      3,
			}, nil
		},
	}
	pub := &recordingPublisher{}

	NewDispatcher(feed, pub, format.ModeText, "[test]").Serve(context.Background(), "chan-1", Command{})

	if len(pub.messages) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(pub.messages))
	}
	for _, ch := range pub.channels {
		if ch != "chan-1" {
			t.Fatalf("unexpected channel: %q", ch)
		}
	}
}

func TestDispatcher_FanOutJoinsAllStudents(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		students: func(ctx context.Context) ([]brightwheel.Student, error) {
			return []brightwheel.Student{
				{ObjectID: "s1", FirstName: "Jenny"},
				{ObjectID: "s2", FirstName: "Tommy"},
			}, nil
		},
		activities: func(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error) {
			a := kudoActivity("a-" + studentID)
			if studentID == "s2" {
				a.Target.FirstName = "Tommy"
			}
			return brightwheel.ActivityPage{Activities: []brightwheel.Activity{a}, Count: 1}, nil
		},
	}
	pub := &recordingPublisher{}

	NewDispatcher(feed, pub, format.ModeText, "[test]").Serve(context.Background(), "chan-1", Command{})

	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(pub.messages))
	}
	// Student order is preserved even though fetches run concurrently.
	if pub.messages[0].Text[:5] != "Jenny" || pub.messages[1].Text[:5] != "Tommy" {
		t.Fatalf("student order broken: %q, %q", pub.messages[0].Text, pub.messages[1].Text)
	}
}

func TestDispatcher_EmptyPageNotice(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		students: func(ctx context.Context) ([]brightwheel.Student, error) {
			return []brightwheel.Student{{ObjectID: "s1", FirstName: "Jenny"}}, nil
		},
		activities: func(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error) {
			return brightwheel.ActivityPage{Count: 0}, nil
		},
	}
	pub := &recordingPublisher{}

	NewDispatcher(feed, pub, format.ModeText, "[test]").Serve(context.Background(), "chan-1", Command{})

	if len(pub.messages) != 1 || pub.messages[0].Text != "No activities available." {
		t.Fatalf("expected one notice, got %#v", pub.messages)
	}
}

func TestDispatcher_SingleErrorMessage(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		students: func(ctx context.Context) ([]brightwheel.Student, error) {
			return nil, &brightwheel.AuthError{
				StatusCode: 401,
				Body:       `{"_errors":[{"title":"User is invalid","message":"You must specify the user","code":"E1205"}]}`,
			}
		},
	}
	pub := &recordingPublisher{}

	NewDispatcher(feed, pub, format.ModeText, "[test]").Serve(context.Background(), "chan-1", Command{})

	if len(pub.messages) != 1 {
		t.Fatalf("expected a single error reply, got %d", len(pub.messages))
	}
	if pub.messages[0].Text != "User is invalid: You must specify the user [E1205]" {
		t.Fatalf("unexpected error reply: %q", pub.messages[0].Text)
	}
}

func TestDispatcher_FetchFailureSuppressesActivityReplies(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		students: func(ctx context.Context) ([]brightwheel.Student, error) {
			return []brightwheel.Student{
				{ObjectID: "s1", FirstName: "Jenny"},
				{ObjectID: "s2", FirstName: "Tommy"},
			}, nil
		},
		activities: func(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error) {
			if studentID == "s2" {
				return brightwheel.ActivityPage{}, &brightwheel.FetchError{Endpoint: "students/s2/activities", StatusCode: 500, Body: "boom"}
			}
			return brightwheel.ActivityPage{Activities: []brightwheel.Activity{kudoActivity("a1")}, Count: 1}, nil
		},
	}
	pub := &recordingPublisher{}

	NewDispatcher(feed, pub, format.ModeText, "[test]").Serve(context.Background(), "chan-1", Command{})

	// No partial results: one failure fails the whole command.
	if len(pub.messages) != 1 || pub.messages[0].Text != "boom" {
		t.Fatalf("expected a single error reply, got %#v", pub.messages)
	}
}

func TestDispatcher_CardMode(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		students: func(ctx context.Context) ([]brightwheel.Student, error) {
			return []brightwheel.Student{{ObjectID: "s1", FirstName: "Jenny"}}, nil
		},
		activities: func(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error) {
			a := kudoActivity("a1")
			return brightwheel.ActivityPage{Activities: []brightwheel.Activity{a}, Count: 1}, nil
		},
	}
	pub := &recordingPublisher{}

	NewDispatcher(feed, pub, format.ModeCard, "[test]").Serve(context.Background(), "chan-1", Command{})

	if len(pub.messages) != 1 || pub.messages[0].Card == nil {
		t.Fatalf("expected a card reply, got %#v", pub.messages)
	}
	if pub.messages[0].Card.Title != "Jenny received kudos." {
		t.Fatalf("unexpected card title: %q", pub.messages[0].Card.Title)
	}
}

func TestDispatcher_FilterPassedThrough(t *testing.T) {
	t.Parallel()

	var gotFilter brightwheel.ActionType
	feed := &fakeFeed{
		students: func(ctx context.Context) ([]brightwheel.Student, error) {
			return []brightwheel.Student{{ObjectID: "s1", FirstName: "Jenny"}}, nil
		},
		activities: func(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error) {
			gotFilter = filter
			return brightwheel.ActivityPage{Count: 0}, nil
		},
	}

	NewDispatcher(feed, &recordingPublisher{}, format.ModeText, "[test]").Serve(context.Background(), "chan-1", Command{Filter: brightwheel.ActionPhoto})

	if gotFilter != brightwheel.ActionPhoto {
		t.Fatalf("unexpected filter: %q", gotFilter)
	}
}

// End to end through the real client: login, one student, one photo activity.
func TestDispatcher_EndToEndPhoto(t *testing.T) {
	t.Parallel()

	const imageURL = "https://github.com/github.png"

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "_brightwheel_v2=thelongauthstring; path=/")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object_id":"guardian-1"}`))
	})
	mux.HandleFunc("GET /guardians/guardian-1/students", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"students":[{"student":{"object_id":"student-1","first_name":"Jenny"}}]}`))
	})
	mux.HandleFunc("GET /students/student-1/activities", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"activities":[{"action_type":"ac_photo","target":{"first_name":"Jenny"},"actor":{"first_name":"Karen","last_name":"Teacher"},"event_date":"2021-07-21T11:30:00.000Z","media":{"image_url":%q,"thumbnail_url":%q}}],"count":1}`, imageURL, imageURL)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := brightwheel.NewClient(srv.Client(), srv.URL, brightwheel.Credentials{Email: "parent@example.org", Password: "testing123"}, 5)

	pub := &recordingPublisher{}
	NewDispatcher(client, pub, format.ModeText, "[test]").Serve(context.Background(), "chan-1", Command{})

	want := "Jenny was in a photo. - https://github.com/github.png | Jul 21, 2021 11:30 AM"
	if len(pub.messages) != 1 || pub.messages[0].Text != want {
		t.Fatalf("unexpected replies: %#v", pub.messages)
	}

	// Same flow in card mode.
	pub = &recordingPublisher{}
	NewDispatcher(client, pub, format.ModeCard, "[test]").Serve(context.Background(), "chan-1", Command{})

	if len(pub.messages) != 1 || pub.messages[0].Card == nil {
		t.Fatalf("expected one card reply, got %#v", pub.messages)
	}
	card := pub.messages[0].Card
	if card.Title != "Jenny was in a photo." || card.Text != "" {
		t.Fatalf("unexpected card: %#v", card)
	}
	if card.TitleLink != imageURL || card.ImageURL != imageURL || card.ThumbURL != imageURL {
		t.Fatalf("unexpected card links: %#v", card)
	}
}
