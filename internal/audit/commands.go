package audit

import (
	"fmt"
	"strconv"
	"strings"

	"wall_go/models"
)

// Kind задаёт вид команды модератора. Набор закрыт: новая команда требует записи в dispatch.
type Kind int

const (
	KindApprove Kind = iota + 1
	KindApproveImmediate
	KindReject
	KindToggleAnonymous
	KindHold
	KindDelete
	KindBlacklist
	KindComment
	KindReply
	KindRerender
	KindRefresh
	KindQuickReply
	KindRecheck
)

var kindNames = map[Kind]string{
	KindApprove:          "approve",
	KindApproveImmediate: "approve-immediate",
	KindReject:           "reject",
	KindToggleAnonymous:  "toggle-anonymous",
	KindHold:             "hold",
	KindDelete:           "delete",
	KindBlacklist:        "blacklist",
	KindComment:          "comment",
	KindReply:            "reply",
	KindRerender:         "rerender",
	KindRefresh:          "refresh",
	KindQuickReply:       "quick-reply",
	KindRecheck:          "recheck",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// aliases сопоставляет все написания команды с её видом.
var aliases = map[string]Kind{
	"approve": KindApprove, "是": KindApprove, "pass": KindApprove,
	"approve-immediate": KindApproveImmediate, "立即": KindApproveImmediate, "now": KindApproveImmediate,
	"reject": KindReject, "拒": KindReject, "deny": KindReject,
	"toggle-anonymous": KindToggleAnonymous, "匿": KindToggleAnonymous, "anon": KindToggleAnonymous,
	"hold": KindHold, "等": KindHold, "wait": KindHold,
	"delete": KindDelete, "删": KindDelete, "del": KindDelete,
	"blacklist": KindBlacklist, "拉黑": KindBlacklist, "ban": KindBlacklist,
	"comment": KindComment, "评论": KindComment,
	"reply": KindReply, "回复": KindReply,
	"rerender": KindRerender, "重渲染": KindRerender,
	"refresh": KindRefresh, "刷新": KindRefresh,
	"quick-reply": KindQuickReply, "快捷回复": KindQuickReply, "qr": KindQuickReply,
	"recheck": KindRecheck, "重新审核": KindRecheck,
}

// Command: разобранная команда "<id> <команда> [аргументы]".
type Command struct {
	SubmissionID int64
	Kind         Kind
	Args         string
}

// Parse разбирает текст команды. Любая ошибка разбора оборачивает models.ErrUnknownCommand.
func Parse(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return Command{}, fmt.Errorf("%w: expected \"<id> <command> [args]\"", models.ErrUnknownCommand)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return Command{}, fmt.Errorf("%w: bad submission id %q", models.ErrUnknownCommand, fields[0])
	}
	kind, ok := aliases[strings.ToLower(fields[1])]
	if !ok {
		// ID сохраняем, чтобы отказ попал в журнал заявки
		return Command{SubmissionID: id}, fmt.Errorf("%w: %q", models.ErrUnknownCommand, fields[1])
	}

	// аргументы сохраняют исходные пробелы: это текст для пользователя
	rest := strings.TrimSpace(text)
	rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
	rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))

	c := Command{SubmissionID: id, Kind: kind, Args: rest}
	if dispatch[kind].needsArgs && c.Args == "" {
		return Command{SubmissionID: id}, fmt.Errorf("%w: %s requires an argument", models.ErrUnknownCommand, kind)
	}
	return c, nil
}
