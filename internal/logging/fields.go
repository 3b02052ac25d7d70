package logging

const (
	// FieldComponent names the subsystem emitting the line.
	FieldComponent = "component"
	// FieldStage names the pipeline stage (acquire, difference, process, write).
	FieldStage = "stage"
	// FieldRunID carries the pipeline run identifier.
	FieldRunID = "run_id"
	// FieldFrame carries a frame or candidate sequence number.
	FieldFrame = "frame"
	// FieldTick carries the sequencer tick counter.
	FieldTick = "tick"
	// FieldChannel names a hand-off channel (ring, select, write).
	FieldChannel = "channel"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact states the consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags anomalies that should stand out.
	FieldAlert = "alert"
)
