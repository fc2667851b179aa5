package callrecord

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eleven-am/voice-bridge/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

type RecordList struct {
	Enabled bool      `json:"enabled"`
	Records []*Record `json:"records"`
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListRecent)
	g.GET("/:conversation_id", h.GetByConversation)
}

// @Summary      List recent call records
// @Tags         calls
// @Produce      json
// @Param        limit  query     int  false  "Maximum records (1-500)"  default(50)
// @Success      200    {object}  callrecord.RecordList
// @Failure      400    {object}  shared.APIError
// @Failure      500    {object}  shared.APIError
// @Router       /v1/calls [get]
func (h *Handler) ListRecent(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return shared.NewAPIError("invalid_limit", "limit must be between 1 and 500").
				WithDetails(map[string]string{"limit": raw}).
				ToHTTP(http.StatusBadRequest)
		}
		limit = n
	}

	records, err := h.store.ListRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("failed to list call records", "error", err)
		return shared.InternalError("list_records_failed", "failed to list call records")
	}
	if records == nil {
		records = []*Record{}
	}

	return c.JSON(http.StatusOK, RecordList{
		Enabled: h.store.Enabled(),
		Records: records,
	})
}

// @Summary      Call records for a conversation
// @Tags         calls
// @Produce      json
// @Param        conversation_id  path      string  true  "Conversation ID"
// @Success      200              {object}  callrecord.RecordList
// @Failure      404              {object}  shared.APIError
// @Failure      500              {object}  shared.APIError
// @Router       /v1/calls/{conversation_id} [get]
func (h *Handler) GetByConversation(c echo.Context) error {
	id := c.Param("conversation_id")

	records, err := h.store.GetByConversation(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("failed to get call records", "error", err, "conversation_id", id)
		return shared.InternalError("get_records_failed", "failed to get call records")
	}
	if len(records) == 0 {
		return shared.NotFound("conversation_not_found", "no call records for conversation")
	}

	return c.JSON(http.StatusOK, RecordList{
		Enabled: true,
		Records: records,
	})
}
