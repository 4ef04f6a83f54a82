package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"hiddystays/internal/app/dto"
	availabilityapp "hiddystays/internal/app/handlers/availability"
	"hiddystays/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Get(c *gin.Context) {
	query := availabilityapp.GetAvailabilityQuery{
		PropertyID: c.Query("property_id"),
		StartDate:  c.Query("start_date"),
		EndDate:    c.Query("end_date"),
	}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, "availability query failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
