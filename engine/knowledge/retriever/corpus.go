package retriever

// DefaultCorpus is the seed content served by the memory backend when no
// remote knowledge service is configured.
func DefaultCorpus() map[string][]Document {
	return map[string][]Document{
		"exercise_technique": {
			{Text: "Brace the core and keep the bar over mid-foot during the squat descent.", ContentType: "technique", Tags: []string{"squat", "form"}},
			{Text: "Retract the shoulder blades and keep the elbows near 45 degrees on the bench press.", ContentType: "technique", Tags: []string{"bench", "shoulder"}},
			{Text: "Hinge at the hips with a neutral spine to protect the lower back when deadlifting.", ContentType: "technique", Tags: []string{"deadlift", "lower_back"}},
		},
		"strength_programming": {
			{Text: "Linear progression adds small loads each session until recovery stalls.", ContentType: "programming", Tags: []string{"progression"}},
			{Text: "Use RPE 7 to 9 for most working sets to balance stimulus and fatigue.", ContentType: "programming", Tags: []string{"rpe", "sets"}},
		},
		"hypertrophy_programming": {
			{Text: "Ten to twenty hard sets per muscle per week drives most hypertrophy.", ContentType: "programming", Tags: []string{"volume", "muscle"}},
		},
		"endurance_training": {
			{Text: "Keep roughly eighty percent of running volume in zone2 to build aerobic base.", ContentType: "programming", Tags: []string{"running", "zone2"}},
		},
		"nutrition": {
			{Text: "Aim for 1.6 to 2.2 grams of protein per kilogram of body weight daily.", ContentType: "nutrition", Tags: []string{"protein", "macros"}},
			{Text: "Hydration needs rise with sweat loss; weigh before and after long sessions.", ContentType: "nutrition", Tags: []string{"hydration"}},
		},
		"mobility_flexibility": {
			{Text: "Thoracic rotations and wall slides restore overhead shoulder mobility.", ContentType: "protocol", Tags: []string{"shoulder", "mobility"}},
			{Text: "Dynamic hip openers make a better warmup than long static stretching.", ContentType: "technique", Tags: []string{"hip", "warmup"}},
		},
		"recovery_sleep": {
			{Text: "Seven to nine hours of sleep improves recovery and training quality.", ContentType: "guidance", Tags: []string{"sleep", "recovery"}},
		},
		"injury_prevention": {
			{Text: "Band external rotations strengthen the rotator cuff and protect the shoulder.", ContentType: "protocol", Tags: []string{"shoulder", "prehab"}},
			{Text: "Gradual load increases under ten percent per week reduce knee tendon pain.", ContentType: "guidance", Tags: []string{"knee", "pain"}},
		},
		"injury_rehab_protocols": {
			{Text: "For shoulder impingement, train pain-free ranges and progress isometrics to light presses.", ContentType: "protocol", Tags: []string{"shoulder", "rehab"}},
			{Text: "Tendon rehab favors slow heavy resistance with pain kept at three of ten or lower.", ContentType: "protocol", Tags: []string{"tendon", "pain"}},
		},
		"fatigue_science": {
			{Text: "A sustained drop in HRV with rising RPE at fixed loads signals accumulated fatigue.", ContentType: "research", Tags: []string{"fatigue", "hrv", "rpe"}},
		},
		"deload_protocols": {
			{Text: "A deload cuts volume by forty to sixty percent for one week while keeping intensity.", ContentType: "protocol", Tags: []string{"deload", "volume"}},
		},
		"cardio_physiology": {
			{Text: "VO2max improves with intervals of three to five minutes near maximal effort.", ContentType: "research", Tags: []string{"vo2max", "intervals"}},
		},
	}
}
