package task

import (
	"time"

	"github.com/falconiq/prsync/internal/models"
)

// StageStatus tracks a post-download pipeline stage (goal mapping,
// classification, import) for one user and work type. It shares the
// crash-safe record format of Task.
type StageStatus struct {
	PRUserName string          `json:"pr_user_name"`
	Work       models.WorkType `json:"work"`
	Completed  bool            `json:"completed"`
	Processed  int             `json:"processed"`
	Remaining  int             `json:"remaining"`
	UpdatedAt  time.Time       `json:"updated_at,omitempty"`
}

// StageCompleted reports whether the stage record at path exists and is
// marked completed.
func StageCompleted(path string) (bool, error) {
	var st StageStatus
	found, err := ReadRecord(path, &st)
	if err != nil {
		return false, err
	}
	return found && st.Completed, nil
}
