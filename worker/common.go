package worker

import (
	"path"

	"text2phenotype.com/ner/store"
)

const (
	WorkTypePredict = "predict"
	WorkTypeTrain   = "train"

	senderName = "ner"
)

func getArtifactFileKey(prefix string, runID string) string {
	return path.Join(prefix, runID, store.DefaultFileName)
}
