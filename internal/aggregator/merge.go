package aggregator

import (
	"sort"
	"strings"

	"wall_go/models"
)

// Merge склеивает сообщения окна в порядке поступления:
// тексты через один пробел, вложения подряд.
func Merge(entries []*models.MessageCacheEntry) *models.Submission {
	sorted := append([]*models.MessageCacheEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ArrivedAt.Before(sorted[j].ArrivedAt)
	})

	s := &models.Submission{}
	texts := make([]string, 0, len(sorted))
	for _, e := range sorted {
		s.Messages = append(s.Messages, models.RawMessage{
			Ref:       e.MessageRef,
			Text:      e.Text,
			Media:     e.Media,
			ArrivedAt: e.ArrivedAt,
		})
		if e.Text != "" {
			texts = append(texts, e.Text)
		}
		s.Media = append(s.Media, e.Media...)
	}
	s.Text = strings.Join(texts, " ")
	return s
}
