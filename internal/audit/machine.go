package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"wall_go/internal/blacklist"
	"wall_go/internal/config"
	"wall_go/internal/metrics"
	"wall_go/internal/worker"
	"wall_go/models"
	"wall_go/pkg/storage"
)

// Windows: окна агрегации, которые можно закрыть досрочно.
type Windows interface {
	CloseWindow(ctx context.Context, group string, windowID int64) error
	HasWindow(windowID int64) bool
}

// Processor перезапускает обработку заявки.
type Processor interface {
	Start(ctx context.Context, s *models.Submission)
	StartRerender(s *models.Submission)
}

// Immediate публикует одну заявку вне пакета.
type Immediate interface {
	PublishNow(ctx context.Context, group string, submissionID int64) error
}

// Messenger пишет пользователю в личные сообщения от бота группы.
type Messenger interface {
	SendPrivate(ctx context.Context, group, sender, text string) error
}

// Request: команда от модератора или оператора.
type Request struct {
	Group string
	Actor string
	Text  string
	// Operator: команда пришла через защищённый HTTP API, проверка модератора не нужна.
	Operator bool
}

// Result описывает выполненную команду.
type Result struct {
	SubmissionID  int64                   `json:"submission_id"`
	Command       string                  `json:"command"`
	Status        models.SubmissionStatus `json:"status,omitempty"`
	PublishNumber *int64                  `json:"publish_number,omitempty"`
	Message       string                  `json:"message"`
}

// Machine исполняет команды модерации. Переходы выполняются на воркере группы;
// вызывающий ждёт только сохранения перехода, побочные эффекты идут в фоне.
type Machine struct {
	base      context.Context
	db        *storage.DB
	guard     *blacklist.Guard
	workers   *worker.Pool
	cfg       *config.Store
	windows   Windows
	processor Processor
	immediate Immediate
	messenger Messenger
	log       *zap.Logger

	wg sync.WaitGroup
}

type Options struct {
	DB        *storage.DB
	Guard     *blacklist.Guard
	Workers   *worker.Pool
	Config    *config.Store
	Windows   Windows
	Processor Processor
	Immediate Immediate
	Messenger Messenger
	Logger    *zap.Logger
}

func New(base context.Context, o Options) *Machine {
	return &Machine{
		base:      base,
		db:        o.DB,
		guard:     o.Guard,
		workers:   o.Workers,
		cfg:       o.Config,
		windows:   o.Windows,
		processor: o.Processor,
		immediate: o.Immediate,
		messenger: o.Messenger,
		log:       o.Logger.Named("audit"),
	}
}

// SetImmediate подключает планировщик после создания (он создаётся позже машины).
func (m *Machine) SetImmediate(i Immediate) { m.immediate = i }

// Wait дожидается фоновых побочных эффектов команд.
func (m *Machine) Wait() { m.wg.Wait() }

// call: состояние одной команды на воркере.
type call struct {
	req    Request
	cmd    Command
	group  *config.GroupConfig
	sub    *models.Submission
	detail string
	msg    string
	after  []func(ctx context.Context)
}

func (c *call) later(fn func(ctx context.Context)) { c.after = append(c.after, fn) }

// Execute разбирает и исполняет команду. Каждая команда попадает в audit_log.
func (m *Machine) Execute(ctx context.Context, req Request) (*Result, error) {
	g, ok := m.cfg.Group(req.Group)
	cmd, err := Parse(req.Text)
	if !ok {
		err := fmt.Errorf("unknown account group %q", req.Group)
		m.record(ctx, req, cmd, models.OutcomeRejected, err.Error())
		return nil, err
	}
	if err != nil {
		m.record(ctx, req, cmd, models.OutcomeRejected, err.Error())
		return nil, err
	}
	if !req.Operator && !g.IsModerator(req.Actor) {
		err := fmt.Errorf("%s: %w", req.Actor, models.ErrUnauthorized)
		m.record(ctx, req, cmd, models.OutcomeRejected, err.Error())
		return nil, err
	}

	c := &call{req: req, cmd: cmd, group: g}
	err = m.workers.Get(req.Group).Do(ctx, func(ctx context.Context) error {
		err := m.apply(ctx, c)
		outcome, detail := models.OutcomeOK, c.detail
		var terr *models.TransitionError
		switch {
		case errors.As(err, &terr), errors.Is(err, models.ErrUnknownCommand):
			outcome, detail = models.OutcomeRejected, err.Error()
		case err != nil:
			outcome, detail = models.OutcomeError, err.Error()
		}
		m.record(ctx, req, cmd, outcome, detail)
		return err
	})
	if err != nil {
		m.log.Info("command refused",
			zap.String("group", req.Group),
			zap.String("actor", req.Actor),
			zap.String("command", cmd.Kind.String()),
			zap.Int64("submission", cmd.SubmissionID),
			zap.Error(err))
		return nil, err
	}

	for _, fn := range c.after {
		fn := fn
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			fn(m.base)
		}()
	}

	res := &Result{SubmissionID: cmd.SubmissionID, Command: cmd.Kind.String(), Message: c.msg}
	if c.sub != nil {
		res.Status = c.sub.Status
		res.PublishNumber = c.sub.PublishNumber
	}
	m.log.Info("command applied",
		zap.String("group", req.Group),
		zap.String("actor", req.Actor),
		zap.String("command", res.Command),
		zap.Int64("submission", cmd.SubmissionID),
		zap.String("status", string(res.Status)))
	return res, nil
}

// apply проверяет предусловие и вызывает обработчик из таблицы.
func (m *Machine) apply(ctx context.Context, c *call) error {
	entry := dispatch[c.cmd.Kind]
	name := c.cmd.Kind.String()

	if entry.pre == preOpenWindow {
		if !m.windows.HasWindow(c.cmd.SubmissionID) {
			return &models.TransitionError{SubmissionID: c.cmd.SubmissionID, Command: name, Reason: "requires " + entry.pre.String()}
		}
		return entry.run(m, ctx, c)
	}

	sub, err := m.db.GetSubmission(ctx, c.cmd.SubmissionID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && sub.AccountGroup != c.req.Group) {
		return &models.TransitionError{SubmissionID: c.cmd.SubmissionID, Command: name, Reason: "submission not found"}
	}
	if err != nil {
		return err
	}
	if !entry.pre.allows(sub.Status) {
		return &models.TransitionError{SubmissionID: sub.ID, Command: name, From: sub.Status, Reason: "requires " + entry.pre.String()}
	}
	c.sub = sub
	return entry.run(m, ctx, c)
}

func (m *Machine) record(ctx context.Context, req Request, cmd Command, outcome, detail string) {
	name, label := cmd.Kind.String(), cmd.Kind.String()
	if cmd.Kind == 0 {
		name, label = req.Text, "unknown"
	}
	metrics.AuditCommands.WithLabelValues(req.Group, label, outcome).Inc()
	err := m.db.AppendAudit(ctx, &models.AuditLogEntry{
		SubmissionID: cmd.SubmissionID,
		AccountGroup: req.Group,
		Actor:        req.Actor,
		Command:      name,
		Args:         cmd.Args,
		Outcome:      outcome,
		Detail:       detail,
	})
	if err != nil {
		m.log.Error("append audit entry failed", zap.Error(err))
	}
}
