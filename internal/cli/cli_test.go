package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"wall_go/internal/publish"
	"wall_go/models"
)

func init() {
	color.NoColor = true
}

func TestPrintSubmission(t *testing.T) {
	n := int64(4)
	var buf bytes.Buffer
	printSubmission(&buf, &models.Submission{
		ID: 9, AccountGroup: "wall", Sender: "42", Status: models.StatusPublished, PublishNumber: &n, Text: "hello",
	}, map[string]*models.PublishRecord{
		"webhook":  {Status: models.RecordFailed, Attempts: 3, LastError: "boom"},
		"telegram": {Status: models.RecordSucceeded, Attempts: 1, ExternalID: "77"},
	})
	out := buf.String()
	assert.Contains(t, out, "#9 published (group wall, sender 42)")
	assert.Contains(t, out, "publish number: 4")
	assert.Contains(t, out, `webhook    failed attempts=3 error="boom"`)
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("telegram")), bytes.Index(buf.Bytes(), []byte("webhook")))
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &publish.Report{Group: "wall", Posts: 2, Succeeded: 1, Failed: 1})
	assert.Contains(t, buf.String(), "group wall, 2 posts")
	assert.Contains(t, buf.String(), "succeeded: 1")
}

func TestRootCommands(t *testing.T) {
	root := RootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "flush", "clear", "status"}, names)
}
