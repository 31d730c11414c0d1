package shop

import "fmt"

// maxPlanSize bounds the DP tables; both planners allocate O(size) slots.
const maxPlanSize = 1_000_000

// PlanTopUp finds the cheapest combination of packs that yields at least
// targetTickets. Quantities are unbounded.
func PlanTopUp(cat Catalog, targetTickets int64) (Plan, error) {
	if targetTickets <= 0 || len(cat.Packs) == 0 {
		return Plan{}, nil
	}

	var maxYield int64
	for _, p := range cat.Packs {
		maxYield = max(maxYield, p.Yield())
	}
	// DP over tickets up to target + maxYield to permit overshoot with minimal cost.
	limit := targetTickets + maxYield
	if limit > maxPlanSize {
		return Plan{}, fmt.Errorf("top-up of %d tickets exceeds planner limit", targetTickets)
	}

	const inf = int64(^uint64(0) >> 1)
	dp := make([]int64, limit+1) // min diamonds to reach exactly t tickets
	pick := make([]int, limit+1) // chosen pack index
	prev := make([]int64, limit+1)
	for t := range dp {
		dp[t], pick[t], prev[t] = inf, -1, -1
	}
	dp[0] = 0

	for t := int64(0); t <= limit; t++ {
		if dp[t] == inf {
			continue
		}
		for i, p := range cat.Packs {
			nt := min(t+p.Yield(), limit)
			if cost := dp[t] + p.Diamonds; cost < dp[nt] {
				dp[nt], pick[nt], prev[nt] = cost, i, t
			}
		}
	}

	// pick best t >= target
	bestT, bestCost := targetTickets, dp[targetTickets]
	for t := targetTickets; t <= limit; t++ {
		if dp[t] < bestCost {
			bestT, bestCost = t, dp[t]
		}
	}

	counts := make([]int, len(cat.Packs))
	for t := bestT; t > 0 && pick[t] != -1; t = prev[t] {
		counts[pick[t]]++
	}
	return buildPlan(cat, counts), nil
}

// MaxTickets computes the most tickets purchasable with budget diamonds
// (unbounded knapsack on the diamond budget).
func MaxTickets(cat Catalog, budget int64) (Plan, error) {
	if budget <= 0 || len(cat.Packs) == 0 {
		return Plan{}, nil
	}
	if budget > maxPlanSize {
		return Plan{}, fmt.Errorf("budget of %d diamonds exceeds planner limit", budget)
	}

	// dp[c] = max tickets with cost exactly c
	dp := make([]int64, budget+1)
	choose := make([]int, budget+1)
	for c := range choose {
		choose[c] = -1
	}
	for c := int64(0); c <= budget; c++ {
		for i, p := range cat.Packs {
			nc := c + p.Diamonds
			if nc <= budget {
				if val := dp[c] + p.Yield(); val > dp[nc] {
					dp[nc], choose[nc] = val, i
				}
			}
		}
	}
	// best at any cost <= budget
	bestC := int64(0)
	for c := int64(0); c <= budget; c++ {
		if dp[c] > dp[bestC] {
			bestC = c
		}
	}

	counts := make([]int, len(cat.Packs))
	for c := bestC; c > 0 && choose[c] != -1; c -= cat.Packs[choose[c]].Diamonds {
		counts[choose[c]]++
	}
	return buildPlan(cat, counts), nil
}

// buildPlan lists purchases in catalog order.
func buildPlan(cat Catalog, counts []int) Plan {
	var plan Plan
	for i, qty := range counts {
		if qty == 0 {
			continue
		}
		p := cat.Packs[i]
		sub := p.Diamonds * int64(qty)
		plan.Purchases = append(plan.Purchases, Purchase{
			PackID:    p.ID,
			Name:      p.Name,
			Qty:       qty,
			UnitPrice: p.Diamonds,
			UnitYield: p.Yield(),
			Subtotal:  sub,
		})
		plan.TotalDiamonds += sub
		plan.TotalTickets += p.Yield() * int64(qty)
	}
	return plan
}
