package publish

import (
	"regexp"
	"strings"

	"wall_go/internal/config"
	"wall_go/internal/platform"
	"wall_go/models"
)

var linkPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// extractLinks возвращает ссылки из текста без повторов, в порядке появления.
func extractLinks(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range linkPattern.FindAllString(text, -1) {
		l = strings.TrimRight(l, ".,;:!?)")
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Compose собирает пост для площадки по её флагам оформления.
func Compose(pc config.PlatformConfig, s *models.Submission) platform.Content {
	c := platform.Content{SubmissionID: s.ID, Text: s.Text}
	if pc.WithNumber && s.PublishNumber != nil {
		c.Number = *s.PublishNumber
	}
	if pc.AtSender && !s.IsAnonymous {
		c.Mention = "@" + strings.TrimPrefix(s.Sender, "@")
	}
	if pc.WithLinks {
		c.Links = extractLinks(s.Text)
	}
	if s.ArtifactRef != "" {
		c.Media = append(c.Media, s.ArtifactRef)
	}
	c.Media = append(c.Media, s.Media...)
	return c
}
