package platform

import (
	"context"
	"errors"
	"sync"

	"wall_go/models"
)

// ErrClassifierSkipped: прогонка решила обойтись без классификатора.
var ErrClassifierSkipped = errors.New("classifier skipped")

// Job: одна прогонка заявки через стадии обработки.
// Стадии работают с копией заявки; результат фиксирует воркер группы.
type Job struct {
	Submission *models.Submission

	classifier Classifier
	once       sync.Once
	verdict    *Classification
	verdictErr error
}

func NewJob(s *models.Submission, c Classifier) *Job {
	return &Job{Submission: s, classifier: c}
}

// Classification вызывает классификатор не больше одного раза за прогонку.
func (j *Job) Classification(ctx context.Context) (*Classification, error) {
	j.once.Do(func() {
		if j.classifier == nil {
			j.verdictErr = models.ErrClassificationUnavailable
			return
		}
		j.verdict, j.verdictErr = j.classifier.Classify(ctx, j.Submission.Text, j.Submission.Media)
	})
	return j.verdict, j.verdictErr
}

// SkipClassifier запрещает вызов классификатора в этой прогонке, если он ещё не был вызван.
// Дальше Classification возвращает ErrClassifierSkipped.
func (j *Job) SkipClassifier() {
	j.once.Do(func() { j.verdictErr = ErrClassifierSkipped })
}
