package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

func TestBuildListQuery(t *testing.T) {
	allowed := map[string]bool{"status": true, "tier": true, "amount": true, "created_at": true}
	base := "SELECT * FROM payments"

	tests := []struct {
		name     string
		opts     models.ListOptions
		wantSQL  string
		wantArgs []any
		wantErr  string
	}{
		{
			name:     "no filters default order",
			opts:     models.ListOptions{},
			wantSQL:  "SELECT * FROM payments ORDER BY created_at DESC",
			wantArgs: nil,
		},
		{
			name: "eq filter with pagination",
			opts: models.ListOptions{
				Filters: []models.Filter{{Field: "status", Op: models.OpEq, Value: "completed"}},
				Limit:   10,
				Offset:  20,
			},
			wantSQL:  "SELECT * FROM payments WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			wantArgs: []any{"completed", 10, 20},
		},
		{
			name: "range filters ascending",
			opts: models.ListOptions{
				Filters: []models.Filter{
					{Field: "amount", Op: models.OpGte, Value: 100},
					{Field: "amount", Op: models.OpLte, Value: 500},
				},
				OrderBy: "amount",
				Asc:     true,
			},
			wantSQL:  "SELECT * FROM payments WHERE amount >= $1 AND amount <= $2 ORDER BY amount ASC",
			wantArgs: []any{100, 500},
		},
		{
			name: "in filter with tiers",
			opts: models.ListOptions{
				Filters: []models.Filter{
					{Field: "tier", Op: models.OpIn, Value: []models.Tier{models.TierPremium, models.TierPro}},
				},
			},
			wantSQL:  "SELECT * FROM payments WHERE tier IN ($1, $2) ORDER BY created_at DESC",
			wantArgs: []any{"premium", "pro"},
		},
		{
			name: "in filter with empty slice matches nothing",
			opts: models.ListOptions{
				Filters: []models.Filter{{Field: "status", Op: models.OpIn, Value: []string{}}},
			},
			wantSQL:  "SELECT * FROM payments WHERE FALSE ORDER BY created_at DESC",
			wantArgs: nil,
		},
		{
			name: "like filter wraps value",
			opts: models.ListOptions{
				Filters: []models.Filter{{Field: "status", Op: models.OpLike, Value: "pend"}},
			},
			wantSQL:  "SELECT * FROM payments WHERE status ILIKE $1 ORDER BY created_at DESC",
			wantArgs: []any{"%pend%"},
		},
		{
			name: "unknown field rejected",
			opts: models.ListOptions{
				Filters: []models.Filter{{Field: "password", Op: models.OpEq, Value: "x"}},
			},
			wantErr: `filter field "password" is not allowed`,
		},
		{
			name: "unknown operator rejected",
			opts: models.ListOptions{
				Filters: []models.Filter{{Field: "status", Op: "between", Value: "x"}},
			},
			wantErr: `unknown operator`,
		},
		{
			name:    "order field rejected",
			opts:    models.ListOptions{OrderBy: "password"},
			wantErr: `order field "password" is not allowed`,
		},
		{
			name: "in operator requires slice",
			opts: models.ListOptions{
				Filters: []models.Filter{{Field: "status", Op: models.OpIn, Value: "completed"}},
			},
			wantErr: "expects a slice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := buildListQuery(base, tt.opts, allowed)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}
