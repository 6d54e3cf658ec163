package worker

import (
	"fmt"

	"text2phenotype.com/ner/registry"
)

type redisTransactions interface {
	getRun(runID string) (*registry.TrainingRun, error)
	getLatestArtifactKey() (string, error)
	onRunStarted(task *Task) error
	onRunExceededRetries(task *Task, maxRetries int) error
	onRunFailedWithError(task *Task, err error) error
	onRunComplete(task *Task, artifactKey string) error
	close()
}

type redisClientWrapper struct {
	runs *registry.Runs
}

func (wrapper *redisClientWrapper) close() {
	_ = wrapper.runs.Close()
}

func (wrapper *redisClientWrapper) getRun(runID string) (*registry.TrainingRun, error) {
	return wrapper.runs.GetOrSubmit(runID)
}

func (wrapper *redisClientWrapper) getLatestArtifactKey() (string, error) {
	latest, err := wrapper.runs.Latest()
	if err != nil {
		return "", err
	}
	return latest.ArtifactKey, nil
}

func (wrapper *redisClientWrapper) onRunStarted(task *Task) error {
	return wrapper.runs.Update(task.run.RunID, func(run *registry.TrainingRun) {
		run.Status = registry.RunStatusStarted
		run.Attempts += 1
		run.StartedAt = registry.Timestamp()
		run.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onRunExceededRetries(task *Task, maxRetries int) error {
	return wrapper.runs.Update(task.run.RunID, func(run *registry.TrainingRun) {
		run.Status = registry.RunStatusCompletedFailure
		run.CompletedAt = registry.Timestamp()
		run.ErrorMessages = append(
			run.ErrorMessages,
			fmt.Sprintf(
				"Training run has exceeded retries. (Attempts: %d, max retries: %d )",
				run.Attempts,
				maxRetries,
			),
		)
	})
}

func (wrapper *redisClientWrapper) onRunFailedWithError(task *Task, err error) error {
	return wrapper.runs.Update(task.run.RunID, func(run *registry.TrainingRun) {
		run.Status = registry.RunStatusFailed
		run.CompletedAt = registry.Timestamp()
		run.ErrorMessages = append(run.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onRunComplete(task *Task, artifactKey string) error {
	err := wrapper.runs.Update(task.run.RunID, func(run *registry.TrainingRun) {
		if !run.Status.Complete() {
			run.Status = registry.RunStatusCompletedSuccess
		}
		run.CompletedAt = registry.Timestamp()
		run.ArtifactKey = artifactKey
		run.Report = task.report
	})
	if err != nil {
		return err
	}
	return wrapper.runs.SetLatest(task.run.RunID, artifactKey)
}
