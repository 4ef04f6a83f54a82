package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/dto"
	availabilityapp "hiddystays/internal/app/handlers/availability"
)

type HostCalendarHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type blockDatesRequest struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason"`
	PriceCents *int64 `json:"price_cents"`
}

func (h HostCalendarHandler) Block(c *gin.Context) {
	host, ok := requireRole(c, "host")
	if !ok {
		return
	}
	var req blockDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := availabilityapp.BlockDatesCommand{
		HostID:          host.ID,
		PropertyID:      c.Param("id"),
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Reason:          req.Reason,
		PriceCents:      req.PriceCents,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[availabilityapp.BlockDatesCommand, *dto.BlockedRange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "block dates failed", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h HostCalendarHandler) Unblock(c *gin.Context) {
	host, ok := requireRole(c, "host")
	if !ok {
		return
	}
	cmd := availabilityapp.UnblockDatesCommand{HostID: host.ID, PropertyID: c.Param("id"), BlockID: c.Param("blockId")}
	result, err := commands.Dispatch[availabilityapp.UnblockDatesCommand, *availabilityapp.UnblockResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "unblock dates failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setDateRequest struct {
	Available  bool   `json:"available"`
	PriceCents *int64 `json:"price_cents"`
	MinNights  int    `json:"min_nights"`
	MaxNights  int    `json:"max_nights"`
}

func (h HostCalendarHandler) SetDate(c *gin.Context) {
	host, ok := requireRole(c, "host")
	if !ok {
		return
	}
	var req setDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := availabilityapp.SetDateOverrideCommand{
		HostID:     host.ID,
		PropertyID: c.Param("id"),
		Date:       c.Param("date"),
		Available:  req.Available,
		PriceCents: req.PriceCents,
		MinNights:  req.MinNights,
		MaxNights:  req.MaxNights,
	}
	result, err := commands.Dispatch[availabilityapp.SetDateOverrideCommand, *dto.DateOverride](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "set date override failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ HostCalendarHTTP = HostCalendarHandler{}
