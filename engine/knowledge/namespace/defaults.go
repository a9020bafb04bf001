package namespace

// builtin is the fitness knowledge registry. Order matters: it breaks ties.
var builtin = []Namespace{
	{
		ID:           "exercise_technique",
		Goals:        []string{"strength", "hypertrophy", "technique", "general_fitness"},
		Hints:        []string{"form", "technique", "squat", "deadlift", "bench", "press", "shoulder", "knee"},
		BaseWeight:   1.0,
		ContentTypes: ContentTechnique,
		Default:      true,
	},
	{
		ID:           "strength_programming",
		Goals:        []string{"strength", "powerlifting", "general_fitness"},
		Hints:        []string{"1rm", "periodization", "progression", "sets", "reps", "rpe"},
		BaseWeight:   1.0,
		ContentTypes: ContentProgramming,
		Default:      true,
	},
	{
		ID:           "hypertrophy_programming",
		Goals:        []string{"hypertrophy", "body_composition"},
		Hints:        []string{"volume", "muscle", "split", "sets", "reps"},
		BaseWeight:   0.9,
		ContentTypes: ContentProgramming,
		Default:      true,
	},
	{
		ID:           "endurance_training",
		Goals:        []string{"endurance", "general_fitness"},
		Hints:        []string{"running", "cycling", "rowing", "zone2", "marathon"},
		BaseWeight:   0.9,
		ContentTypes: ContentProgramming,
	},
	{
		ID:           "nutrition",
		Goals:        []string{"body_composition", "weight_loss", "hypertrophy", "endurance"},
		Hints:        []string{"protein", "calories", "diet", "hydration", "supplements", "macros"},
		BaseWeight:   0.8,
		ContentTypes: ContentNutrition,
		Default:      true,
	},
	{
		ID:           "mobility_flexibility",
		Goals:        []string{"mobility", "general_fitness"},
		Hints:        []string{"stretching", "mobility", "hip", "shoulder", "ankle", "warmup"},
		BaseWeight:   0.8,
		ContentTypes: ContentTechnique | ContentProtocol,
	},
	{
		ID:           "recovery_sleep",
		Goals:        []string{"recovery", "general_fitness"},
		Hints:        []string{"sleep", "soreness", "recovery", "stress", "hrv"},
		BaseWeight:   0.8,
		ContentTypes: ContentGuidance,
		Default:      true,
	},
	{
		ID:           "injury_prevention",
		Goals:        []string{VirtualInjuryAnalysis, "injury_prevention"},
		Hints:        []string{"shoulder", "knee", "lower_back", "wrist", "elbow", "ankle", "pain", "prehab"},
		BaseWeight:   1.0,
		ContentTypes: ContentProtocol | ContentGuidance,
	},
	{
		ID:           "injury_rehab_protocols",
		Goals:        []string{VirtualInjuryAnalysis},
		Hints:        []string{"shoulder", "knee", "lower_back", "rehab", "pain", "tendon"},
		BaseWeight:   1.1,
		ContentTypes: ContentProtocol,
	},
	{
		ID:           "fatigue_science",
		Goals:        []string{VirtualFatigueMonitoring, VirtualDeloadRecommendation},
		Hints:        []string{"fatigue", "overtraining", "hrv", "rpe", "soreness"},
		BaseWeight:   1.0,
		ContentTypes: ContentResearch,
	},
	{
		ID:           "deload_protocols",
		Goals:        []string{VirtualDeloadRecommendation},
		Hints:        []string{"deload", "taper", "fatigue", "volume"},
		BaseWeight:   1.0,
		ContentTypes: ContentProtocol | ContentProgramming,
	},
	{
		ID:           "cardio_physiology",
		Goals:        []string{VirtualCardioAnalysis, "endurance"},
		Hints:        []string{"heart_rate", "vo2max", "zone2", "hrv", "cardio"},
		BaseWeight:   1.0,
		ContentTypes: ContentResearch,
	},
}

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(builtin)
	if err != nil {
		panic(err)
	}
	return r
}
