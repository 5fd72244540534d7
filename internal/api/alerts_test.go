package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskin/headsup/internal/alertcenter"
	"github.com/tkoskin/headsup/internal/notification"
)

func TestGetPendingAlerts(t *testing.T) {
	center := &stubCenter{}
	e, _, controller := setupTestEnvironment(t, center)

	fireAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, center.Add(context.Background(), notification.Alert{
		Key:    "renewal",
		Body:   "Renew today",
		Sound:  true,
		FireAt: fireAt,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pending", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, controller.GetPendingAlerts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Alerts []notification.Alert `json:"alerts"`
		Count  int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, "renewal", response.Alerts[0].Key)
	assert.True(t, response.Alerts[0].Sound)
	assert.True(t, response.Alerts[0].FireAt.Equal(fireAt))
}

func TestGetPendingAlertsStoreError(t *testing.T) {
	center := &stubCenter{}
	e, _, controller := setupTestEnvironment(t, center)

	center.failPending(fmt.Errorf("journal unavailable"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pending", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, controller.GetPendingAlerts(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to retrieve pending alerts")
}

func TestGetDeliveredAlertsUnsupported(t *testing.T) {
	center := &stubCenter{}
	e, _, controller := setupTestEnvironment(t, center)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/delivered", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, controller.GetDeliveredAlerts(c))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "not supported")
}

func TestGetDeliveredAlerts(t *testing.T) {
	center, err := alertcenter.New(&alertcenter.Config{})
	require.NoError(t, err)
	t.Cleanup(center.Close)

	e, _, controller := setupTestEnvironment(t, center)

	// A past-due alert fires as soon as it is armed.
	require.NoError(t, center.Add(context.Background(), notification.Alert{
		Key:    "renewal",
		Body:   "Renew today",
		FireAt: time.Now().Add(-time.Second),
	}))

	require.Eventually(t, func() bool {
		delivered, err := center.DeliveredAlerts(context.Background())
		return err == nil && len(delivered) == 1
	}, 2*time.Second, 10*time.Millisecond, "past-due alert should reach the delivered history")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/delivered", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, controller.GetDeliveredAlerts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Alerts []alertcenter.DeliveredAlert `json:"alerts"`
		Count  int                          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, "renewal", response.Alerts[0].Alert.Key)
	assert.False(t, response.Alerts[0].FiredAt.IsZero())
}
