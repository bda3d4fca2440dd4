package platform

import (
	"fmt"
	"strings"
)

// Content: пост, собранный для конкретной площадки с учётом её флагов.
type Content struct {
	SubmissionID int64
	Number       int64 // 0: номер не выводится
	Mention      string
	Text         string
	Links        []string
	Media        []string
}

// Body собирает текст поста. Площадки без разметки публикуют его как есть.
func (c Content) Body() string {
	var b strings.Builder
	if c.Number > 0 {
		fmt.Fprintf(&b, "#%d", c.Number)
	}
	if c.Mention != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.Mention)
	}
	if b.Len() > 0 && c.Text != "" {
		b.WriteString("\n")
	}
	b.WriteString(c.Text)
	for _, l := range c.Links {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String()
}
