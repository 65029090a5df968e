package triage

// RecoveryPlanFor returns the canned four-week plan. Week 2 switches to
// speech therapy when the aphasia category matched.
func RecoveryPlanFor(recs RecommendationSet) RecoveryPlan {
	week2 := "Mobility training"
	if recs.Matched(CategoryAphasia) {
		week2 = "Speech therapy"
	}
	return RecoveryPlan{
		{Week: "Week 1", Activity: "Physical therapy & monitoring"},
		{Week: "Week 2", Activity: week2},
		{Week: "Week 3", Activity: "Cognitive exercises"},
		{Week: "Week 4", Activity: "Reassessment & goal setting"},
	}
}
