package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"

	FieldOwner         = "owner_id"
	FieldTransactionID = "transaction_id"
	FieldGoalID        = "goal_id"
	FieldCategory      = "category"
	FieldDirection     = "direction"
	FieldAmountCents   = "amount_cents"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldHorizon       = "horizon"

	FieldAttempted = "attempted"
	FieldSucceeded = "succeeded"
	FieldFailed    = "failed"
	FieldSkipped   = "skipped"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentTransaction = "transaction"
	ComponentAnalytics   = "analytics"
	ComponentHealth      = "health"
	ComponentForecast    = "forecast"
	ComponentGoal        = "goal"
	ComponentScheduler   = "scheduler"
	ComponentStorage     = "storage"
	ComponentCache       = "cache"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentPredictor   = "predictor"
)
