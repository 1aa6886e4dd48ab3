package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskMirrorSync = "crm.sync_mirror"

type MirrorSyncPayload struct {
	RunID     string `json:"runId"`
	Requested string `json:"requested"` // "periodic" or "manual"
}

func NewMirrorSyncTask(payload MirrorSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMirrorSync, data), nil
}

func ParseMirrorSyncPayload(task *asynq.Task) (MirrorSyncPayload, error) {
	var payload MirrorSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MirrorSyncPayload{}, err
	}
	return payload, nil
}
