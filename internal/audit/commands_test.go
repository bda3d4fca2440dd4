package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wall_go/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"12 approve", Command{SubmissionID: 12, Kind: KindApprove}},
		{"#12 是", Command{SubmissionID: 12, Kind: KindApprove}},
		{"7 立即", Command{SubmissionID: 7, Kind: KindApproveImmediate}},
		{"7 REJECT спам и реклама", Command{SubmissionID: 7, Kind: KindReject, Args: "спам и реклама"}},
		{"3 评论  отличный  пост ", Command{SubmissionID: 3, Kind: KindComment, Args: "отличный  пост"}},
		{"3 qr rules", Command{SubmissionID: 3, Kind: KindQuickReply, Args: "rules"}},
		{"5 重新审核", Command{SubmissionID: 5, Kind: KindRecheck}},
		{"5 拉黑", Command{SubmissionID: 5, Kind: KindBlacklist}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{"", "approve", "abc approve", "0 approve", "12 publish", "12 comment", "12 reply   "} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, models.ErrUnknownCommand, text)
	}
}

func TestEveryKindIsDispatched(t *testing.T) {
	for kind := range kindNames {
		_, ok := dispatch[kind]
		assert.True(t, ok, kind.String())
	}
	for alias, kind := range aliases {
		_, ok := kindNames[kind]
		assert.True(t, ok, alias)
	}
}
