package ipc

import "framewatch/internal/pipeline"

// StatusRequest is empty; it exists to satisfy net/rpc.
type StatusRequest struct{}

// StatusResponse is the daemon status snapshot.
type StatusResponse struct {
	Running        bool             `json:"running"`
	PID            int              `json:"pid"`
	LockPath       string           `json:"lock_path"`
	DatabasePath   string           `json:"database_path"`
	CameraDevice   string           `json:"camera_device,omitempty"`
	CameraPresent  bool             `json:"camera_present"`
	HotplugWatched bool             `json:"hotplug_watched"`
	LastError      string           `json:"last_error,omitempty"`
	Pipeline       *pipeline.Status `json:"pipeline,omitempty"`
}

// StopRequest asks the active run to stop.
type StopRequest struct{}

// StopResponse reports whether a run received the stop request.
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}
