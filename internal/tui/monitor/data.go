package monitor

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/shopsync/internal/models"
)

// fetchData reads connectivity and queue state off the UI loop.
func (m Model) fetchData() tea.Cmd {
	return func() tea.Msg {
		msg := RefreshMsg{Timestamp: time.Now()}
		msg.Online = m.Prober.Online()

		counts, err := m.Queue.Counts()
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Counts = counts

		dead, err := m.Queue.DeadLetterCount()
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.DeadLetters = dead

		intents, err := m.Queue.PendingIntents()
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Intents = intents

		msg.Recent, msg.Err = m.recentItems()
		return msg
	}
}

// recentItems returns the newest queued items across every category.
func (m Model) recentItems() ([]models.QueuedItem, error) {
	var all []models.QueuedItem
	for _, category := range models.Categories() {
		items, err := m.Queue.All(category)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })
	if len(all) > recentLimit {
		all = all[:recentLimit]
	}
	return all, nil
}

// drain runs one replay pass off the UI loop.
func (m Model) drain() tea.Cmd {
	engine := m.Engine
	q := m.Queue
	return func() tea.Msg {
		summary, err := engine.DrainOnce(time.Now())
		if err == nil {
			if intents, ierr := q.PendingIntents(); ierr == nil {
				for _, in := range intents {
					q.MarkIntentFired(in.Tag)
				}
			}
		}
		return DrainMsg{Summary: summary, Err: err}
	}
}
