package httpapi

import (
	"time"

	"github.com/swipedine/prefetch/internal/domain/model"
)

// budgetView mirrors the read shape returned by GET /budget.
type budgetView struct {
	SessionCeiling   float64 `json:"session_ceiling"`
	DailyCeiling     float64 `json:"daily_ceiling"`
	MonthlyCeiling   float64 `json:"monthly_ceiling"`
	SessionSpent     float64 `json:"session_spent"`
	DailySpent       float64 `json:"daily_spent"`
	MonthlySpent     float64 `json:"monthly_spent"`
	SessionRemaining float64 `json:"session_remaining"`
	DailyRemaining   float64 `json:"daily_remaining"`
	MonthlyRemaining float64 `json:"monthly_remaining"`
	SafelySpendable  float64 `json:"safely_spendable"`
	IsLowBudget      bool    `json:"is_low_budget"`
	IsEmergencyMode  bool    `json:"is_emergency_mode"`
	BudgetExceeded   bool    `json:"budget_exceeded"`
}

func newBudgetView(st model.BudgetStatus) budgetView {
	return budgetView{
		SessionCeiling:   st.SessionCeiling,
		DailyCeiling:     st.DailyCeiling,
		MonthlyCeiling:   st.MonthlyCeiling,
		SessionSpent:     st.SessionSpent,
		DailySpent:       st.DailySpent,
		MonthlySpent:     st.MonthlySpent,
		SessionRemaining: st.SessionRemaining,
		DailyRemaining:   st.DailyRemaining,
		MonthlyRemaining: st.MonthlyRemaining,
		SafelySpendable:  st.SafelySpendable,
		IsLowBudget:      st.IsLowBudget,
		IsEmergencyMode:  st.IsEmergencyMode,
		BudgetExceeded:   st.BudgetExceeded,
	}
}

// eventView mirrors the read shape returned by GET /events.
type eventView struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	ItemID    string    `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
	Cost      float64   `json:"cost"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Score     float64   `json:"score"`
}

func newEventView(e model.Event) eventView {
	return eventView{
		ID:        e.ID,
		Stage:     string(e.Stage),
		ItemID:    e.ItemID,
		Timestamp: e.Timestamp,
		Cost:      e.Cost,
		Success:   e.Success,
		Error:     e.Error,
		Reason:    e.Decision.Reason,
		Score:     e.Score.Final,
	}
}
