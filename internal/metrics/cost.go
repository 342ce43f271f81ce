package metrics

import "time"

// CostRecord accumulates LLM token usage across invocations. It is
// persisted between runs, so the spend shown to operators covers the
// lifetime of the artifact tree, not just the current process.
type CostRecord struct {
	EmbeddingTokens      int64     `json:"embedding_tokens"`
	ClassifyInputTokens  int64     `json:"classify_input_tokens"`
	ClassifyOutputTokens int64     `json:"classify_output_tokens"`
	TotalCostUSD         float64   `json:"total_cost_usd"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Add folds one run's snapshot into the record and reprices the
// cumulative totals.
func (r *CostRecord) Add(snap Snapshot) {
	if snap.Embedding != nil && snap.Embedding.TotalInputTokens != nil {
		r.EmbeddingTokens += *snap.Embedding.TotalInputTokens
	}
	if snap.LLMClassify != nil {
		if snap.LLMClassify.TotalInputTokens != nil {
			r.ClassifyInputTokens += *snap.LLMClassify.TotalInputTokens
		}
		if snap.LLMClassify.TotalOutputTokens != nil {
			r.ClassifyOutputTokens += *snap.LLMClassify.TotalOutputTokens
		}
	}
	r.TotalCostUSD = float64(r.EmbeddingTokens)/tokensPerMillion*EmbeddingPricePerMTok +
		float64(r.ClassifyInputTokens)/tokensPerMillion*ClassifyInputPerMTok +
		float64(r.ClassifyOutputTokens)/tokensPerMillion*ClassifyOutputPerMTok
	r.UpdatedAt = time.Now().UTC()
}
