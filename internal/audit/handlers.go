package audit

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wall_go/models"
	"wall_go/pkg/storage"
)

type entry struct {
	pre       precondition
	needsArgs bool
	run       func(m *Machine, ctx context.Context, c *call) error
}

var dispatch = map[Kind]entry{
	KindApprove:          {pre: preReviewable, run: (*Machine).approve},
	KindApproveImmediate: {pre: preReviewable, run: (*Machine).approveImmediate},
	KindReject:           {pre: preReviewable, run: (*Machine).reject},
	KindToggleAnonymous:  {pre: preNonTerminal, run: (*Machine).toggleAnonymous},
	KindHold:             {pre: preAwaiting, run: (*Machine).hold},
	KindDelete:           {pre: preNonTerminal, run: (*Machine).delete},
	KindBlacklist:        {pre: preExists, run: (*Machine).blacklist},
	KindComment:          {pre: preExists, needsArgs: true, run: (*Machine).comment},
	KindReply:            {pre: preExists, needsArgs: true, run: (*Machine).reply},
	KindRerender:         {pre: preExists, run: (*Machine).rerender},
	KindRefresh:          {pre: preOpenWindow, run: (*Machine).refresh},
	KindQuickReply:       {pre: preExists, needsArgs: true, run: (*Machine).quickReply},
	KindRecheck:          {pre: preNonTerminal, run: (*Machine).recheck},
}

// approve присваивает номер публикации (один раз за жизнь заявки) и ставит пост в очередь.
func (m *Machine) approve(ctx context.Context, c *call) error {
	s := c.sub
	err := m.db.WithTx(ctx, func(q *storage.Queries) error {
		if s.PublishNumber == nil {
			n, err := q.NextCounter(ctx, storage.CounterPublishNumber)
			if err != nil {
				return err
			}
			s.PublishNumber = &n
		}
		s.Status = models.StatusApproved
		if err := q.UpdateSubmission(ctx, s); err != nil {
			return err
		}
		return q.InsertStoredPost(ctx, &models.StoredPost{SubmissionID: s.ID, AccountGroup: s.AccountGroup})
	})
	if err != nil {
		return err
	}
	c.detail = fmt.Sprintf("publish number %d", *s.PublishNumber)
	c.msg = fmt.Sprintf("#%d одобрена, номер публикации %d", s.ID, *s.PublishNumber)
	return nil
}

func (m *Machine) approveImmediate(ctx context.Context, c *call) error {
	if err := m.approve(ctx, c); err != nil {
		return err
	}
	group, id := c.sub.AccountGroup, c.sub.ID
	c.later(func(ctx context.Context) {
		if m.immediate == nil {
			m.log.Warn("immediate publishing is not configured", zap.Int64("submission", id))
			return
		}
		if err := m.immediate.PublishNow(ctx, group, id); err != nil {
			m.log.Error("immediate publish failed", zap.Int64("submission", id), zap.Error(err))
		}
	})
	c.msg += ", публикуется сразу"
	return nil
}

func (m *Machine) reject(ctx context.Context, c *call) error {
	c.sub.Status = models.StatusRejected
	if err := m.db.UpdateSubmission(ctx, c.sub); err != nil {
		return err
	}
	c.detail = c.cmd.Args
	c.msg = fmt.Sprintf("#%d отклонена", c.sub.ID)
	return nil
}

func (m *Machine) toggleAnonymous(ctx context.Context, c *call) error {
	s := c.sub
	s.IsAnonymous = !s.IsAnonymous
	s.NeedsRerender = true
	if err := m.db.UpdateSubmission(ctx, s); err != nil {
		return err
	}
	m.startRerender(c)
	c.detail = fmt.Sprintf("anonymous=%t", s.IsAnonymous)
	if s.IsAnonymous {
		c.msg = fmt.Sprintf("#%d теперь анонимна", s.ID)
	} else {
		c.msg = fmt.Sprintf("#%d больше не анонимна", s.ID)
	}
	return nil
}

func (m *Machine) hold(ctx context.Context, c *call) error {
	c.sub.Status = models.StatusHeld
	if err := m.db.UpdateSubmission(ctx, c.sub); err != nil {
		return err
	}
	c.msg = fmt.Sprintf("#%d отложена", c.sub.ID)
	return nil
}

func (m *Machine) delete(ctx context.Context, c *call) error {
	if err := m.softDelete(ctx, c.sub); err != nil {
		return err
	}
	c.msg = fmt.Sprintf("#%d удалена", c.sub.ID)
	return nil
}

// softDelete помечает заявку удалённой и убирает её из очереди публикации.
// Номер публикации остаётся за заявкой.
func (m *Machine) softDelete(ctx context.Context, s *models.Submission) error {
	return m.db.WithTx(ctx, func(q *storage.Queries) error {
		s.Status = models.StatusDeleted
		if err := q.UpdateSubmission(ctx, s); err != nil {
			return err
		}
		_, err := q.DeleteStoredPost(ctx, s.ID)
		return err
	})
}

func (m *Machine) blacklist(ctx context.Context, c *call) error {
	s := c.sub
	err := m.guard.Add(ctx, &models.BlacklistEntry{
		Sender:       s.Sender,
		AccountGroup: s.AccountGroup,
		Reason:       c.cmd.Args,
		Actor:        c.req.Actor,
	})
	if err != nil {
		return err
	}
	c.detail = c.cmd.Args
	c.msg = fmt.Sprintf("отправитель #%d в чёрном списке", s.ID)
	if !s.Status.IsTerminal() {
		if err := m.softDelete(ctx, s); err != nil {
			return err
		}
		c.msg += ", заявка удалена"
	}
	return nil
}

func (m *Machine) comment(ctx context.Context, c *call) error {
	c.sub.Comment = c.cmd.Args
	if err := m.db.UpdateSubmission(ctx, c.sub); err != nil {
		return err
	}
	c.detail = c.cmd.Args
	c.msg = fmt.Sprintf("комментарий к #%d сохранён", c.sub.ID)
	return nil
}

func (m *Machine) reply(_ context.Context, c *call) error {
	m.sendPrivate(c, c.cmd.Args)
	c.detail = c.cmd.Args
	c.msg = fmt.Sprintf("ответ автору #%d отправлен", c.sub.ID)
	return nil
}

func (m *Machine) rerender(_ context.Context, c *call) error {
	m.startRerender(c)
	c.msg = fmt.Sprintf("#%d отправлена на перерендер", c.sub.ID)
	return nil
}

func (m *Machine) refresh(ctx context.Context, c *call) error {
	if err := m.windows.CloseWindow(ctx, c.req.Group, c.cmd.SubmissionID); err != nil {
		return err
	}
	c.msg = fmt.Sprintf("окно #%d закрыто", c.cmd.SubmissionID)
	return nil
}

func (m *Machine) quickReply(_ context.Context, c *call) error {
	key := strings.ToLower(c.cmd.Args)
	text, ok := c.group.QuickReplies[key]
	if !ok {
		return fmt.Errorf("%w: quick reply %q is not configured", models.ErrUnknownCommand, key)
	}
	m.sendPrivate(c, text)
	c.detail = key
	c.msg = fmt.Sprintf("шаблон %q отправлен автору #%d", key, c.sub.ID)
	return nil
}

// recheck возвращает заявку в pending и запускает обработку заново.
func (m *Machine) recheck(ctx context.Context, c *call) error {
	s := c.sub
	err := m.db.WithTx(ctx, func(q *storage.Queries) error {
		s.Status = models.StatusPending
		if err := q.UpdateSubmission(ctx, s); err != nil {
			return err
		}
		_, err := q.DeleteStoredPost(ctx, s.ID)
		return err
	})
	if err != nil {
		return err
	}
	snap := *s
	c.later(func(ctx context.Context) {
		if m.processor != nil {
			m.processor.Start(ctx, &snap)
		}
	})
	c.msg = fmt.Sprintf("#%d отправлена на повторную проверку", s.ID)
	return nil
}

func (m *Machine) startRerender(c *call) {
	snap := *c.sub
	c.later(func(context.Context) {
		if m.processor != nil {
			m.processor.StartRerender(&snap)
		}
	})
}

func (m *Machine) sendPrivate(c *call, text string) {
	group, sender, id := c.sub.AccountGroup, c.sub.Sender, c.sub.ID
	c.later(func(ctx context.Context) {
		if m.messenger == nil {
			m.log.Warn("no messenger for private replies", zap.Int64("submission", id))
			return
		}
		if err := m.messenger.SendPrivate(ctx, group, sender, text); err != nil {
			m.log.Warn("private reply failed", zap.Int64("submission", id), zap.Error(err))
		}
	})
}
