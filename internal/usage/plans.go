package usage

import "strings"

const defaultPlan = "starter"

// planAllowances maps plan names to monthly analysis allowances.
var planAllowances = map[string]int{
	"starter":    5,
	"pro":        50,
	"agency":     200,
	"enterprise": UnlimitedAllowance,
}

// allowanceFor returns the monthly allowance for a plan name. Unknown or
// empty plans fall back to the starter allowance.
func allowanceFor(plan string) (string, int) {
	normalized := strings.ToLower(strings.TrimSpace(plan))
	if allowance, ok := planAllowances[normalized]; ok {
		return normalized, allowance
	}
	return defaultPlan, planAllowances[defaultPlan]
}
