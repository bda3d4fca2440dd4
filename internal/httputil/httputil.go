package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wall_go/models"
)

// RespondError отправляет сообщение об ошибке в едином формате и прекращает обработку запроса.
// Используем AbortWithStatusJSON, чтобы последующие обработчики не выполнялись, даже если забыли вернуть управление.
func RespondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// StatusFor подбирает HTTP статус для доменной ошибки.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrBlacklisted), errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError отвечает статусом из StatusFor. Текст внутренних ошибок наружу не отдаётся.
func RespondDomainError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		RespondError(c, status, "internal error")
		return
	}
	RespondError(c, status, err.Error())
}
