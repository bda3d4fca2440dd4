package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wall_go/internal/app"
	"wall_go/internal/audit"
	"wall_go/internal/httputil"
	"wall_go/models"
	"wall_go/pkg/storage"
)

// Handler: операторский HTTP интерфейс поверх App.
type Handler struct {
	App *app.App
	log *zap.Logger
}

func NewHandler(a *app.App, log *zap.Logger) *Handler {
	return &Handler{App: a, log: log.Named("api")}
}

type commandRequest struct {
	Group string `json:"group" binding:"required"`
	Actor string `json:"actor"`
	Text  string `json:"text" binding:"required"`
}

// Command исполняет команду модерации от имени оператора.
func (h *Handler) Command(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	if !h.groupExists(c, req.Group) {
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = "operator"
	}
	res, err := h.App.Audit.Execute(c.Request.Context(), audit.Request{
		Group:    req.Group,
		Actor:    actor,
		Text:     req.Text,
		Operator: true,
	})
	if err != nil {
		h.log.Info("operator command refused", zap.String("text", req.Text), zap.Error(err))
		httputil.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Submission отдаёт заявку вместе с записями публикации и журналом аудита.
func (h *Handler) Submission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "Invalid submission id")
		return
	}
	ctx := c.Request.Context()
	s, err := h.App.DB.GetSubmission(ctx, id)
	if err != nil {
		httputil.RespondDomainError(c, err)
		return
	}
	records, err := h.App.DB.ListRecords(ctx, id)
	if err != nil {
		h.log.Error("list records failed", zap.Int64("submission", id), zap.Error(err))
		httputil.RespondDomainError(c, err)
		return
	}
	entries, err := h.App.DB.ListAudit(ctx, id)
	if err != nil {
		h.log.Error("list audit failed", zap.Int64("submission", id), zap.Error(err))
		httputil.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": s, "records": records, "audit": entries})
}

func (h *Handler) Submissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.App.DB.ListSubmissions(c.Request.Context(), storage.SubmissionFilter{
		AccountGroup: c.Query("group"),
		Status:       models.SubmissionStatus(c.Query("status")),
		Limit:        limit,
	})
	if err != nil {
		h.log.Error("list submissions failed", zap.Error(err))
		httputil.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": list})
}

// Flush публикует очередь группы, не дожидаясь триггеров.
func (h *Handler) Flush(c *gin.Context) {
	group := c.Param("group")
	if !h.groupExists(c, group) {
		return
	}
	rep, err := h.App.Scheduler.Flush(c.Request.Context(), group)
	if err != nil {
		h.log.Error("flush failed", zap.String("group", group), zap.Error(err))
		httputil.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Clear убирает очередь группы без публикации.
func (h *Handler) Clear(c *gin.Context) {
	group := c.Param("group")
	if !h.groupExists(c, group) {
		return
	}
	n, err := h.App.Scheduler.Clear(c.Request.Context(), group)
	if err != nil {
		h.log.Error("clear failed", zap.String("group", group), zap.Error(err))
		httputil.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func (h *Handler) Blacklist(c *gin.Context) {
	group := c.Param("group")
	if !h.groupExists(c, group) {
		return
	}
	list, err := h.App.Guard.List(c.Request.Context(), group)
	if err != nil {
		httputil.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": list})
}

// Unblock снимает блокировку отправителя в группе (или глобальную без ?group).
func (h *Handler) Unblock(c *gin.Context) {
	removed, err := h.App.Guard.Remove(c.Request.Context(), c.Param("sender"), c.Query("group"))
	if err != nil {
		httputil.RespondDomainError(c, err)
		return
	}
	if !removed {
		httputil.RespondError(c, http.StatusNotFound, "Entry not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// Reload перечитывает конфигурацию. При ошибке действует прежний снимок.
func (h *Handler) Reload(c *gin.Context) {
	cfg, err := h.App.Config.Reload()
	if err != nil {
		h.log.Warn("config reload failed", zap.Error(err))
		httputil.RespondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.log.Info("config reloaded", zap.Int("groups", len(cfg.Groups)))
	c.JSON(http.StatusOK, gin.H{"groups": len(cfg.Groups)})
}

func (h *Handler) groupExists(c *gin.Context, group string) bool {
	if _, ok := h.App.Config.Group(group); !ok {
		httputil.RespondError(c, http.StatusNotFound, "Unknown group")
		return false
	}
	return true
}
