package runtime

// Signal is a ruleset's opaque verdict (spec glossary). The four result-
// shaped values are meaningful to the engine; any other string is an
// opaque informational signal a pipeline `decision` block may still match
// on (e.g. "critical_risk").
type Signal string

const (
	SignalApprove Signal = "approve"
	SignalDecline Signal = "decline"
	SignalReview  Signal = "review"
	SignalHold    Signal = "hold"
	SignalPass    Signal = "pass"
)

// SignalRecord is the per-ruleset outcome stored at `results.<ruleset_id>`.
type SignalRecord struct {
	RulesetID      string   `json:"ruleset_id"`
	Signal         string   `json:"signal"`
	TotalScore     int      `json:"total_score"`
	TriggeredRules []string `json:"triggered_rules"`
	Reason         string   `json:"reason,omitempty"`
	Terminate      bool     `json:"terminate"`
}

// Result is a pipeline's final user-visible verdict.
type Result string

const (
	ResultApprove Result = "approve"
	ResultDecline Result = "decline"
	ResultReview  Result = "review"
	ResultHold    Result = "hold"
)

// DecisionRecord is the pipeline's final outcome, returned to the caller.
type DecisionRecord struct {
	Result  string                   `json:"result"`
	Reason  string                   `json:"reason,omitempty"`
	Actions []string                 `json:"actions,omitempty"`
	Signals map[string]*SignalRecord `json:"signals,omitempty"`
	Trace   []TraceEvent             `json:"trace,omitempty"`
}
