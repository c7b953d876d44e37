package plans

import (
	"net/http"

	"gympro-app/database"
	"gympro-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

// ListPlans returns every plan with its price points, in display order.
func ListPlans(c *gin.Context) {
	var all []plans.Plan
	if err := database.DB.Preload("Prices").Order("display_order asc").Find(&all).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}

	out := make([]gin.H, 0, len(all))
	for i := range all {
		p := &all[i]
		prices := make([]gin.H, 0, len(p.Prices))
		for _, pr := range p.Prices {
			prices = append(prices, gin.H{
				"currency":      pr.Currency,
				"billing_cycle": pr.BillingCycle,
				"amount":        pr.Amount,
			})
		}
		out = append(out, gin.H{
			"plan_id": p.PlanID,
			"name":    p.Name,
			"level":   p.Level,
			"prices":  prices,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}
