package appserver

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// ContainerEventData is the payload of container lifecycle events.
type ContainerEventData struct {
	Container    string   `json:"container"`
	Server       string   `json:"server"`
	ReceiverType string   `json:"receiverType,omitempty"`
	Started      bool     `json:"started"`
	Applications []string `json:"applications,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewCloudEvent creates a CloudEvent with a UUIDv7 ID and the current time.
func NewCloudEvent(eventType, source string, data interface{}, metadata map[string]interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()

	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// generateEventID uses UUIDv7 for time-ordered IDs, falling back to v4.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent checks event against the CloudEvents specification.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return nil
}
