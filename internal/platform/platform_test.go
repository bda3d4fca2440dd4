package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wall_go/models"
)

type countingClassifier struct{ calls int }

func (c *countingClassifier) Classify(context.Context, string, []string) (*Classification, error) {
	c.calls++
	return &Classification{IsSafe: true, IsComplete: true}, nil
}

func TestJobClassifiesOnce(t *testing.T) {
	c := &countingClassifier{}
	job := NewJob(&models.Submission{Text: "привет"}, c)

	for i := 0; i < 3; i++ {
		v, err := job.Classification(context.Background())
		require.NoError(t, err)
		assert.True(t, v.IsSafe)
	}
	assert.Equal(t, 1, c.calls)
}

func TestJobWithoutClassifier(t *testing.T) {
	job := NewJob(&models.Submission{}, nil)
	_, err := job.Classification(context.Background())
	assert.ErrorIs(t, err, models.ErrClassificationUnavailable)
}

func TestJobSkipClassifier(t *testing.T) {
	c := &countingClassifier{}
	job := NewJob(&models.Submission{}, c)
	job.SkipClassifier()

	_, err := job.Classification(context.Background())
	assert.ErrorIs(t, err, ErrClassifierSkipped)
	assert.Equal(t, 0, c.calls)
}

func TestContentBody(t *testing.T) {
	tests := []struct {
		name string
		c    Content
		want string
	}{
		{"plain", Content{Text: "hello"}, "hello"},
		{"number", Content{Number: 7, Text: "hello"}, "#7\nhello"},
		{"number and mention", Content{Number: 7, Mention: "@bob", Text: "hi"}, "#7 @bob\nhi"},
		{"links", Content{Text: "see", Links: []string{"https://a.b"}}, "see\nhttps://a.b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Body())
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[int]()
	r.Register("b", 2)
	r.Register("a", 1)
	v, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = r.Get("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}
