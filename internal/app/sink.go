package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"wall_go/internal/audit"
	"wall_go/internal/platform"
	"wall_go/models"
)

func (a *App) HandleMessage(ctx context.Context, msg platform.InboundMessage) {
	state, err := a.Aggregator.Admit(ctx, msg)
	if errors.Is(err, models.ErrBlacklisted) {
		a.log.Info("message from blacklisted sender dropped", zap.String("group", msg.Group), zap.String("sender", msg.Sender))
		return
	}
	if err != nil {
		a.log.Error("admit failed", zap.String("group", msg.Group), zap.String("sender", msg.Sender), zap.Error(err))
		return
	}
	// подтверждаем только первое сообщение окна, остальные просто продлевают его
	if state.Messages != 1 {
		return
	}
	text := fmt.Sprintf("Заявка #%d принята. Можно дописать ещё сообщения до %s.",
		state.WindowID, state.Deadline.Local().Format("15:04"))
	go func() {
		if err := a.Notify.SendPrivate(a.base, msg.Group, msg.Sender, text); err != nil {
			a.log.Debug("acknowledge failed", zap.String("sender", msg.Sender), zap.Error(err))
		}
	}()
}

func (a *App) HandleRetraction(ctx context.Context, r platform.Retraction) {
	if err := a.Aggregator.Retract(ctx, r); err != nil {
		a.log.Warn("retraction failed", zap.String("group", r.Group), zap.String("ref", r.Ref), zap.Error(err))
	}
}

// HandleCommand исполняет команду из чата модераторов и возвращает текст ответа.
// Обычная переписка в чате (первое слово не номер заявки) игнорируется.
func (a *App) HandleCommand(ctx context.Context, cmd platform.CommandEvent) string {
	if !looksLikeCommand(cmd.Text) {
		return ""
	}
	res, err := a.Audit.Execute(ctx, audit.Request{Group: cmd.Group, Actor: cmd.Actor, Text: cmd.Text})
	if err != nil {
		return describeError(err)
	}
	return res.Message
}

func looksLikeCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	return err == nil
}

func describeError(err error) string {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return "Команда доступна только модераторам группы."
	case errors.Is(err, models.ErrUnknownCommand):
		return "Неизвестная команда. Формат: <номер> <команда> [аргументы]"
	case errors.Is(err, models.ErrInvalidTransition):
		return "Недопустимо: " + err.Error()
	case errors.Is(err, models.ErrBlacklisted):
		return "Отправитель в чёрном списке."
	default:
		return "Ошибка: " + err.Error()
	}
}
