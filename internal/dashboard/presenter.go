package dashboard

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vilaca/activity-dashboard/internal/domain"
	"github.com/vilaca/activity-dashboard/internal/service"
)

// staleAfter is how old the last successful update may get before the
// dashboard flags its data as stale.
const staleAfter = 2 * domain.PollInterval

// Item is the display-ready form of one event.
type Item struct {
	Event      domain.Event `json:"event"`
	Label      string       `json:"label"`
	Icon       string       `json:"icon"`
	ColorClass string       `json:"color_class"`
	BadgeClass string       `json:"badge_class"`
	Sentence   string       `json:"sentence"`
}

// Header summarizes the sync status for the page header.
type Header struct {
	Count           int        `json:"count"`
	CountText       string     `json:"count_text"`
	LastUpdated     *time.Time `json:"last_updated"`
	LastUpdatedText string     `json:"last_updated_text,omitempty"`
	Loading         bool       `json:"loading"`
	Error           string     `json:"error,omitempty"`
	Failures        int        `json:"consecutive_failures"`
	Stale           bool       `json:"stale"`
}

// View is everything a page or API response needs.
type View struct {
	Items  []Item `json:"events"`
	Header Header `json:"status"`
}

// Presenter projects sync snapshots into display values.
type Presenter struct{}

// NewPresenter creates a presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Items lazily projects events into display items, in window order.
func (p *Presenter) Items(events []domain.Event) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for _, e := range events {
			if !yield(project(e)) {
				return
			}
		}
	}
}

// View materializes a snapshot as of now.
func (p *Presenter) View(snap service.Snapshot, now time.Time) View {
	return View{
		Items:  slices.Collect(p.Items(snap.Events)),
		Header: p.Header(snap.Status, len(snap.Events), now),
	}
}

// Header builds the status summary.
func (p *Presenter) Header(status service.SyncStatus, count int, now time.Time) Header {
	h := Header{
		Count:     count,
		CountText: countText(count),
		Failures:  status.ConsecutiveFailures,
		// Only the very first load shows a spinner; later polls refresh in place.
		Loading: status.IsLoading && status.LastUpdated.IsZero() && status.LastError == nil,
	}
	if status.LastError != nil {
		h.Error = status.LastError.Error()
	}
	if !status.LastUpdated.IsZero() {
		updated := status.LastUpdated.UTC()
		h.LastUpdated = &updated
		h.LastUpdatedText = humanize.RelTime(updated, now, "ago", "from now")
		h.Stale = now.Sub(updated) > staleAfter
	}
	return h
}

func countText(n int) string {
	if n == 1 {
		return "1 event"
	}
	return fmt.Sprintf("%s events", humanize.Comma(int64(n)))
}

func project(e domain.Event) Item {
	style := styles[e.Action]
	if style.icon == "" {
		style = styles[domain.ActionUnknown]
	}
	return Item{
		Event:      e,
		Label:      e.Action.Label(),
		Icon:       style.icon,
		ColorClass: style.color,
		BadgeClass: style.badge,
		Sentence:   Describe(e),
	}
}

type actionStyle struct {
	icon  string
	color string
	badge string
}

var styles = map[domain.Action]actionStyle{
	domain.ActionPush:        {"git-branch", "bg-blue-50 border-blue-200", "bg-blue-100 text-blue-800"},
	domain.ActionPullRequest: {"git-pull-request", "bg-green-50 border-green-200", "bg-green-100 text-green-800"},
	domain.ActionMerge:       {"git-merge", "bg-purple-50 border-purple-200", "bg-purple-100 text-purple-800"},
	domain.ActionUnknown:     {"activity", "bg-gray-50 border-gray-200", "bg-gray-100 text-gray-800"},
}

// Describe renders the one-line sentence shown for an event.
func Describe(e domain.Event) string {
	when := FormatTimestamp(e.Timestamp)
	switch e.Action {
	case domain.ActionPush:
		return fmt.Sprintf(`"%s" pushed to "%s" on %s`, e.Author, e.ToBranch, when)
	case domain.ActionPullRequest:
		return fmt.Sprintf(`"%s" submitted a pull request from "%s" to "%s" on %s`, e.Author, e.FromBranch, e.ToBranch, when)
	case domain.ActionMerge:
		return fmt.Sprintf(`"%s" merged branch "%s" to "%s" on %s`, e.Author, e.FromBranch, e.ToBranch, when)
	default:
		return fmt.Sprintf(`"%s" recorded activity on %s`, e.Author, when)
	}
}

// FormatTimestamp formats t in UTC, e.g. "1 April 2024 at 09:30 AM UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2 January 2006 at 03:04 PM") + " UTC"
}
