package cli

import (
	"github.com/falconiq/prsync/internal/metrics"
	"github.com/falconiq/prsync/internal/task"
)

// accumulateCosts folds this invocation's token usage into the durable
// cost record. Invocations that touched no LLM leave the record alone.
func accumulateCosts(path string, snap metrics.Snapshot) error {
	if snap.Embedding == nil && snap.LLMClassify == nil {
		return nil
	}
	var rec metrics.CostRecord
	if _, err := task.ReadRecord(path, &rec); err != nil {
		return err
	}
	rec.Add(snap)
	return task.WriteRecord(path, &rec)
}
