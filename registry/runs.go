// Package registry keeps the records of training runs in Redis. Every update of a run record happens under the
// Redis lock of that record.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"text2phenotype.com/ner/redis"
	"text2phenotype.com/ner/training"
)

const RunsDB redis.DB = 0

const (
	runKeyPrefix = "ner-run:"
	latestKey    = "ner-model:latest"
)

type TrainingRun struct {
	RunID         string           `json:"run_id"`
	Status        RunStatus        `json:"status"`
	Attempts      int              `json:"attempts"`
	CreatedAt     string           `json:"created_at"`
	StartedAt     *string          `json:"started_at"`
	CompletedAt   *string          `json:"completed_at"`
	CorpusKey     string           `json:"corpus_file_key"`
	VocabularyKey string           `json:"vocabulary_file_key"`
	ArtifactKey   string           `json:"artifact_file_key"`
	Overrides     json.RawMessage  `json:"overrides,omitempty"`
	Report        *training.Report `json:"report,omitempty"`
	ErrorMessages []string         `json:"error_messages"`
}

// LatestModel points at the artifact of the last successful run.
type LatestModel struct {
	RunID       string `json:"run_id"`
	ArtifactKey string `json:"artifact_file_key"`
	UpdatedAt   string `json:"updated_at"`
}

type documentStore interface {
	GetDoc(redisKey string, doc interface{}) error
	SaveDoc(redisKey string, doc interface{}) error
	Lock(redisKey string) (redis.ReleaseLock, error)
	Close() error
}

type Runs struct {
	client documentStore
}

func NewRuns() (*Runs, error) {
	client, err := redis.NewClient(RunsDB)
	if err != nil {
		return nil, err
	}
	return &Runs{client: client}, nil
}

func NewRunID() string {
	return uuid.New().String()
}

func Timestamp() *string {
	ts := time.Now().UTC().Format(time.RFC3339)
	return &ts
}

func RunKey(runID string) string {
	return runKeyPrefix + runID
}

// Create stores a new submitted run. A missing RunID is generated.
func (runs *Runs) Create(run *TrainingRun) error {
	if run.RunID == "" {
		run.RunID = NewRunID()
	}
	if run.Status == "" {
		run.Status = RunStatusSubmitted
	}
	if run.CreatedAt == "" {
		run.CreatedAt = *Timestamp()
	}
	return runs.client.SaveDoc(RunKey(run.RunID), run)
}

func (runs *Runs) Get(runID string) (*TrainingRun, error) {
	var run TrainingRun
	if err := runs.client.GetDoc(RunKey(runID), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetOrSubmit returns the run, registering it as submitted first when no record exists for runID.
func (runs *Runs) GetOrSubmit(runID string) (*TrainingRun, error) {
	run, err := runs.Get(runID)
	if !errors.Is(err, redis.ErrNotFound) {
		return run, err
	}
	run = &TrainingRun{RunID: runID}
	if err = runs.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Update reads, modifies and writes back the run while holding its lock.
func (runs *Runs) Update(runID string, updateFunc func(run *TrainingRun)) (err error) {
	key := RunKey(runID)
	releaseLock, err := runs.client.Lock(key)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = releaseLock()
			return
		}
		err = releaseLock()
	}()

	var run TrainingRun
	if err = runs.client.GetDoc(key, &run); err != nil {
		return err
	}
	updateFunc(&run)
	if run.RunID != runID {
		return fmt.Errorf("update changed the run id from %s to %s", runID, run.RunID)
	}
	return runs.client.SaveDoc(key, &run)
}

func (runs *Runs) SetLatest(runID string, artifactKey string) error {
	latest := LatestModel{RunID: runID, ArtifactKey: artifactKey, UpdatedAt: *Timestamp()}
	releaseLock, err := runs.client.Lock(latestKey)
	if err != nil {
		return err
	}
	if err = runs.client.SaveDoc(latestKey, &latest); err != nil {
		_ = releaseLock()
		return err
	}
	return releaseLock()
}

func (runs *Runs) Latest() (*LatestModel, error) {
	var latest LatestModel
	if err := runs.client.GetDoc(latestKey, &latest); err != nil {
		return nil, err
	}
	return &latest, nil
}

func (runs *Runs) Close() error {
	return runs.client.Close()
}
