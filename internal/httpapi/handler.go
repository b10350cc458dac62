package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"campaign-settlement/pkg/config"
	"campaign-settlement/pkg/db/pagination"
	"campaign-settlement/pkg/errutil"
	"campaign-settlement/pkg/health"
	"campaign-settlement/services/settlement"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideRouter),
)

type Handler struct {
	asynq      *asynq.Client
	settlement *settlement.Service
}

type RouterParams struct {
	fx.In

	Config     *config.Config
	Health     health.HealthService
	Asynq      *asynq.Client
	Settlement *settlement.Service
}

// ProvideRouter wires the operator-facing HTTP surface. This is a thin
// boundary: the manual trigger only enqueues the same idempotent task the
// scheduler path runs.
func ProvideRouter(p RouterParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &Handler{
		asynq:      p.Asynq,
		settlement: p.Settlement,
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)

	v1 := r.Group("/v1/settlement")
	v1.POST("/run", h.TriggerRun)
	v1.GET("/status", h.GetStatus)
	v1.GET("/records", h.ListRecords)

	return r
}

type triggerRequest struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by"`
}

func (h *Handler) TriggerRun(c *gin.Context) {
	var req triggerRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual"
	}

	payload, err := json.Marshal(settlement.RunPayload{
		Reason:      req.Reason,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		writeError(c, errutil.Internal("failed to encode trigger payload", errutil.WithErr(err)))
		return
	}

	info, err := h.asynq.EnqueueContext(c.Request.Context(),
		asynq.NewTask(settlement.TaskSettlementRun, payload),
		asynq.Queue("critical"),
	)
	if err != nil {
		zap.L().Error("failed to enqueue settlement run", zap.Error(err))
		writeError(c, errutil.Internal("failed to enqueue settlement run", errutil.WithErr(err)))
		return
	}

	zap.L().Info("settlement run enqueued",
		zap.String("task_id", info.ID),
		zap.String("reason", req.Reason),
		zap.String("requested_by", req.RequestedBy),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"enqueued": true,
		"task_id":  info.ID,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	report, err := h.settlement.Status(c.Request.Context())
	if err != nil {
		writeError(c, errutil.Internal("failed to read settlement status", errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) ListRecords(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		writeError(c, errutil.BadRequest("invalid pagination parameters", errutil.WithErr(err)))
		return
	}

	records, pageInfo, err := h.settlement.ListRecords(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":   records,
		"page_info": pageInfo,
	})
}

func writeError(c *gin.Context, err error) {
	var base errutil.BaseError
	if errors.As(err, &base) {
		c.JSON(base.Status().HTTPCode(), base.JSON())
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
