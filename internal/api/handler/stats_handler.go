package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/core/ports"
)

// StatsHandler serves the gated diagnostic endpoint.
type StatsHandler struct {
	service ports.AccountService
	started time.Time
	now     func() time.Time
}

func NewStatsHandler(service ports.AccountService, started time.Time) *StatsHandler {
	return &StatsHandler{service: service, started: started, now: time.Now}
}

// Stats handles GET /users/secret-stats.
//
// @Summary      User statistics
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        X-Secret-Challenge  header    string  false  "Diagnostic challenge"
// @Param        secret              query     string  false  "Diagnostic challenge"
// @Success      200                 {object}  statsResponse
// @Failure      401                 {object}  errorResponse
// @Failure      403                 {object}  errorResponse
// @Router       /users/secret-stats [get]
func (h *StatsHandler) Stats(c echo.Context) error {
	st, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.JSON(http.StatusOK, statsResponse{
		TotalUsers:   st.TotalUsers,
		AdminUsers:   st.AdminUsers,
		RegularUsers: st.RegularUsers,
		SystemInfo: systemInfo{
			GoVersion:     runtime.Version(),
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			UptimeSeconds: h.now().Sub(h.started).Seconds(),
		},
		Timestamp: st.Timestamp,
	})
}
