// pkg/schema/events.go
package schema

// TaskStage is the lifecycle stage of a single upload task.
type TaskStage string

const (
	StageAccepted  TaskStage = "accepted"
	StageUploading TaskStage = "uploading"
	StageSucceeded TaskStage = "succeeded"
	StageFailed    TaskStage = "failed"
	StageRetrying  TaskStage = "retrying"
	StageCanceled  TaskStage = "canceled"
)

type FailureType string

const (
	FailureTypeRetryable  FailureType = "retryable"
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeValidation FailureType = "validation"
)

// TaskEvent is emitted every time a task changes stage.
type TaskEvent struct {
	TaskID      string      `json:"task_id"`
	Filename    string      `json:"filename"`
	Stage       TaskStage   `json:"stage"`
	Progress    int         `json:"progress"`
	Error       string      `json:"error,omitempty"`
	FailureType FailureType `json:"failure_type,omitempty"`
	HappenedAt  int64       `json:"happened_at"`
}

// AssetStored announces a successfully stored asset together with its
// derived delivery URLs, for back-office consumers (product forms, search
// indexers) that mirror gallery contents.
type AssetStored struct {
	TaskID      string            `json:"task_id"`
	RemoteID    string            `json:"remote_id"`
	SecureURL   string            `json:"secure_url"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Bytes       int64             `json:"bytes"`
	Format      string            `json:"format"`
	DerivedURLs map[string]string `json:"derived_urls,omitempty"`
	HappenedAt  int64             `json:"happened_at"`
}

// BatchDone summarises one submitted batch after every launched task
// reached a terminal state.
type BatchDone struct {
	BatchID          string `json:"batch_id"`
	Submitted        int    `json:"submitted"`
	Rejected         int    `json:"rejected"`
	Completed        int    `json:"completed"`
	Failed           int    `json:"failed"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	HappenedAt       int64  `json:"happened_at"`
}
