package bot

import (
	"context"
	"log"

	"mew/plugins/brightwheel-agent/internal/brightwheel"
	"mew/plugins/brightwheel-agent/internal/format"
	"mew/plugins/brightwheel-agent/pkg/syncx"
)

// Publisher delivers one rendered message to a channel.
type Publisher interface {
	Publish(ctx context.Context, channelID string, msg format.Message) error
}

// Feed is the slice of the Brightwheel client the dispatcher needs.
type Feed interface {
	Students(ctx context.Context) ([]brightwheel.Student, error)
	Activities(ctx context.Context, studentID string, filter brightwheel.ActionType) (brightwheel.ActivityPage, error)
}

const noActivitiesNotice = "No activities available."

// Dispatcher runs the fetch -> format -> publish pipeline for one command.
// The output mode is fixed at construction, once per plugin instance.
type Dispatcher struct {
	feed      Feed
	pub       Publisher
	mode      format.OutputMode
	logPrefix string
}

func NewDispatcher(feed Feed, pub Publisher, mode format.OutputMode, logPrefix string) *Dispatcher {
	return &Dispatcher{feed: feed, pub: pub, mode: mode, logPrefix: logPrefix}
}

// Serve answers one command: list the guardian's students, fetch every
// student's activity page concurrently, then reply in student order with one
// message per activity. Pages the server reports as empty draw a single
// notice instead. Any Brightwheel failure collapses into a single error
// reply; there is no partial-success reporting.
func (d *Dispatcher) Serve(ctx context.Context, channelID string, cmd Command) {
	students, err := d.feed.Students(ctx)
	if err != nil {
		d.reply(ctx, channelID, format.Message{Text: brightwheel.FormatAPIError(err)})
		return
	}

	type result struct {
		page brightwheel.ActivityPage
		err  error
	}
	results := make([]result, len(students))

	g := syncx.NewGroup(ctx)
	for i, student := range students {
		i, student := i, student
		g.Go(func(ctx context.Context) {
			page, err := d.feed.Activities(ctx, student.ObjectID, cmd.Filter)
			results[i] = result{page: page, err: err}
		})
	}
	g.Wait()

	for _, res := range results {
		if res.err != nil {
			d.reply(ctx, channelID, format.Message{Text: brightwheel.FormatAPIError(res.err)})
			return
		}
	}

	for _, res := range results {
		if res.page.Count == 0 {
			d.reply(ctx, channelID, format.Message{Text: noActivitiesNotice})
			continue
		}
		for _, activity := range res.page.Activities {
			d.reply(ctx, channelID, format.Render(activity, d.mode))
		}
	}
}

func (d *Dispatcher) reply(ctx context.Context, channelID string, msg format.Message) {
	if err := d.pub.Publish(ctx, channelID, msg); err != nil {
		log.Printf("%s reply failed: channel=%s err=%v", d.logPrefix, channelID, err)
	}
}
