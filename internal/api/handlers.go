package api

import (
	"net/http"
	"strings"

	"github.com/david/assembly-tracker/internal/models"
	"github.com/david/assembly-tracker/internal/refresh"
	"github.com/labstack/echo/v4"
)

var loadingResponse = map[string]string{"message": "loading"}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleRoot(c echo.Context) error {
	statuses := s.datasets.Status()
	resp := map[string]any{
		"status":            "Server is running",
		"vote_data_loaded":  loaded(statuses, models.DatasetVotes),
		"bills_data_loaded": loaded(statuses, models.DatasetBills),
		"last_refresh_date": lastRefreshDate(statuses),
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	statuses := s.datasets.Status()
	return c.JSON(http.StatusOK, map[string]any{
		"vote_data_loaded":  loaded(statuses, models.DatasetVotes),
		"bills_data_loaded": loaded(statuses, models.DatasetBills),
		"datasets":          statuses,
	})
}

func (s *Server) handleVoteData(c echo.Context) error {
	return s.serveDataset(c, models.DatasetVotes)
}

func (s *Server) handleBillsCombined(c echo.Context) error {
	return s.serveDataset(c, models.DatasetBills)
}

func (s *Server) serveDataset(c echo.Context, name string) error {
	member := strings.TrimSpace(c.QueryParam("member_name"))
	if member == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "member_name is required"})
	}

	value, ready, err := s.datasets.Get(c.Request().Context(), name, member)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !ready {
		return c.JSON(http.StatusOK, loadingResponse)
	}
	return c.JSON(http.StatusOK, value)
}

func loaded(statuses []refresh.DatasetStatus, name string) bool {
	for _, st := range statuses {
		if st.Dataset == name {
			return st.Loaded
		}
	}
	return false
}

// lastRefreshDate is the most recent refresh date across datasets, or nil.
func lastRefreshDate(statuses []refresh.DatasetStatus) *string {
	var latest *refresh.DatasetStatus
	for i := range statuses {
		st := &statuses[i]
		if st.LastRefreshDate == nil {
			continue
		}
		if latest == nil || st.LastRefreshDate.After(*latest.LastRefreshDate) {
			latest = st
		}
	}
	if latest == nil {
		return nil
	}
	date := latest.LastRefreshDate.Format("2006-01-02")
	return &date
}
