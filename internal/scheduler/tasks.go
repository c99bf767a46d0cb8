// Package scheduler runs the background side of the platform: the
// asynq task queue plus the periodic dispatchers that feed it.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskHotLeadAlert = "notification.hotlead.alert"

const TaskFollowUpSweep = "followup.sweep"

const TaskWeeklyDigest = "notification.digest.run"

// HotLeadAlertPayload carries an urgent-lead alert from the API process
// to the worker that delivers it.
type HotLeadAlertPayload struct {
	LeadID         string  `json:"leadId"`
	CustomerID     string  `json:"customerId"`
	UrgencyLevel   string  `json:"urgencyLevel"`
	ServiceType    string  `json:"serviceType"`
	VisitorName    *string `json:"visitorName,omitempty"`
	EstimatedValue int     `json:"estimatedValue"`
	UrgencyScore   float64 `json:"urgencyScore"`
}

func NewHotLeadAlertTask(payload HotLeadAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHotLeadAlert, data), nil
}

func ParseHotLeadAlertPayload(task *asynq.Task) (HotLeadAlertPayload, error) {
	var payload HotLeadAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return HotLeadAlertPayload{}, err
	}
	return payload, nil
}

func NewFollowUpSweepTask() *asynq.Task {
	return asynq.NewTask(TaskFollowUpSweep, nil)
}

func NewWeeklyDigestTask() *asynq.Task {
	return asynq.NewTask(TaskWeeklyDigest, nil)
}
