package workers

// RunResult is the per-battle outcome of one worker pass.
type RunResult struct {
	BattleID string `json:"battle_id"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// RunSummary is what a worker run reports back for observability.
type RunSummary struct {
	Processed int         `json:"processed"`
	Results   []RunResult `json:"results"`
}

func (s *RunSummary) record(battleID, outcome string, err error) {
	r := RunResult{BattleID: battleID, Outcome: outcome}
	if err != nil {
		r.Error = err.Error()
	}
	s.Results = append(s.Results, r)
	s.Processed++
}

// Notifier is the write-only alert sink the lifecycle workers emit through.
type Notifier interface {
	Notify(userID, kind, title, message string, data map[string]interface{}) error
}
