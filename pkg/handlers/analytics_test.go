package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/models"
)

func TestAnalyticsHandler_Overview(t *testing.T) {
	tests := []struct {
		name       string
		svc        *mockAnalyticsService
		wantStatus int
	}{
		{
			name: "overview",
			svc: &mockAnalyticsService{overview: &models.AnalyticsOverview{
				Headcount:     4,
				IncludedCount: 3,
				Departments:   []models.DepartmentActivity{{Department: "Engineering", Headcount: 2, Collaboration: 0.5}},
			}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "failure",
			svc:        &mockAnalyticsService{err: errors.New("redis: connection refused")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewAnalyticsHandler(tt.svc, zap.NewNop()).RegisterRoutes(mux, passthroughTenant)

			rec := serve(t, mux, http.MethodGet, fmt.Sprintf("/api/projects/%s/analytics/overview", uuid.New()), nil)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var overview models.AnalyticsOverview
			decodeData(t, rec, &overview)
			assert.Equal(t, 4, overview.Headcount)
			require.Len(t, overview.Departments, 1)
			assert.Equal(t, 0.5, overview.Departments[0].Collaboration)
		})
	}
}
