package pipeline

import (
	"context"
	"errors"
	"fmt"

	"wall_go/internal/config"
	"wall_go/internal/platform"
	"wall_go/models"
)

// Маркеры анонимности в тексте, если классификатор не ответил.
var anonymityMarkers = []string{"匿名", "匿", "anonymous", "anon", "анонимно", "анон"}

// Каждая стадия при сбое сама выставляет безопасное значение и возвращает ошибку,
// чтобы конвейер учёл сбой и продолжил следующие стадии.

type safetyStage struct {
	cfg *config.Store
}

func (safetyStage) Name() string { return "safety" }

func (s safetyStage) Process(ctx context.Context, job *platform.Job) error {
	sub := job.Submission
	if _, ok := newMatcher(sub.Text).containsAny(s.cfg.Current().Pipeline.SensitiveWords); ok {
		sub.IsSafe = false
		job.SkipClassifier()
		return nil
	}
	v, err := job.Classification(ctx)
	if err != nil {
		sub.IsSafe = false
		return err
	}
	sub.IsSafe = v.IsSafe
	return nil
}

type anonymityStage struct{}

func (anonymityStage) Name() string { return "anonymity" }

func (anonymityStage) Process(ctx context.Context, job *platform.Job) error {
	sub := job.Submission
	v, err := job.Classification(ctx)
	if err == nil && v.Anonymous != nil {
		sub.IsAnonymous = *v.Anonymous
		return nil
	}
	_, sub.IsAnonymous = newMatcher(sub.Text).containsAny(anonymityMarkers)
	return ignoreSkipped(err)
}

type completenessStage struct{}

func (completenessStage) Name() string { return "completeness" }

func (completenessStage) Process(ctx context.Context, job *platform.Job) error {
	v, err := job.Classification(ctx)
	if err != nil {
		// без вердикта заявка всё равно доходит до модераторов
		job.Submission.IsComplete = true
		return ignoreSkipped(err)
	}
	job.Submission.IsComplete = v.IsComplete
	return nil
}

// ignoreSkipped не считает сбоем пропущенный классификатор.
func ignoreSkipped(err error) error {
	if errors.Is(err, platform.ErrClassifierSkipped) {
		return nil
	}
	return err
}

type renderStage struct {
	renderer platform.Renderer
}

func (renderStage) Name() string { return "render" }

func (s renderStage) Process(ctx context.Context, job *platform.Job) error {
	sub := job.Submission
	if s.renderer == nil {
		sub.NeedsRerender = true
		return fmt.Errorf("%w: renderer is not configured", models.ErrRenderFailure)
	}
	ref, err := s.renderer.Render(ctx, sub)
	if err != nil {
		sub.NeedsRerender = true
		if !errors.Is(err, models.ErrRenderFailure) {
			err = fmt.Errorf("%w: %v", models.ErrRenderFailure, err)
		}
		return err
	}
	sub.ArtifactRef = ref
	sub.NeedsRerender = false
	return nil
}

// DefaultStages регистрирует стандартные стадии под их именами.
func DefaultStages(cfg *config.Store, renderer platform.Renderer) *platform.Registry[platform.Processor] {
	r := platform.NewRegistry[platform.Processor]()
	for _, p := range []platform.Processor{
		safetyStage{cfg: cfg},
		anonymityStage{},
		completenessStage{},
		renderStage{renderer: renderer},
	} {
		r.Register(p.Name(), p)
	}
	return r
}
