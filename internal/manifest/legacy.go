package manifest

// Legacy (version 1) manifest layout: no per-stage evaluation, params or
// dataset stats; the final and merged model paths live inside the stage
// objects. Read-only; Save always emits the current layout.

type legacyStage struct {
	AdaptersPath      string            `json:"adaptersPath"`
	TrainingDataPath  string            `json:"trainingDataPath,omitempty"`
	FinalModelPath    string            `json:"finalModelPath,omitempty"`
	MergedModelPath   string            `json:"mergedModelPath,omitempty"`
	TrainingDataPaths map[string]string `json:"trainingDataPaths,omitempty"`
}

type legacyManifest struct {
	SchemaVersion string       `json:"schemaVersion,omitempty"`
	RunID         string       `json:"runId"`
	Timestamp     string       `json:"timestamp"`
	BaseModel     string       `json:"baseModel"`
	Stage1        *legacyStage `json:"stage1,omitempty"`
	Stage2        *legacyStage `json:"stage2,omitempty"`
}

// migrate lifts a legacy document into the canonical representation. The
// stage-2 final-model path is hoisted to the top level; merged-model paths
// and named dataset maps carry over in place.
func (lm *legacyManifest) migrate() *RunManifest {
	m := &RunManifest{
		SchemaVersion: SchemaVersionCurrent,
		RunID:         lm.RunID,
		Timestamp:     lm.Timestamp,
		BaseModel:     lm.BaseModel,
	}
	m.Stage1 = migrateStage(lm.Stage1)
	m.Stage2 = migrateStage(lm.Stage2)
	if lm.Stage2 != nil && lm.Stage2.FinalModelPath != "" {
		m.FinalModelPath = lm.Stage2.FinalModelPath
	}
	return m
}

func migrateStage(ls *legacyStage) *StageManifest {
	if ls == nil {
		return nil
	}
	return &StageManifest{
		AdaptersPath:      ls.AdaptersPath,
		TrainingDataPath:  ls.TrainingDataPath,
		MergedModelPath:   ls.MergedModelPath,
		TrainingDataPaths: ls.TrainingDataPaths,
	}
}

// requiredProblems lists the required legacy fields that are missing.
func (lm *legacyManifest) requiredProblems() []string {
	var problems []string
	if lm.RunID == "" {
		problems = append(problems, "/runId: missing required field")
	}
	if lm.Timestamp == "" {
		problems = append(problems, "/timestamp: missing required field")
	}
	if lm.BaseModel == "" {
		problems = append(problems, "/baseModel: missing required field")
	}
	return problems
}
