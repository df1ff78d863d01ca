package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldCell      = "cell"
	FieldMessageID = "message_id"
	FieldAuthor    = "author"
	FieldAmount    = "amount"
	FieldCurrency  = "currency"
	FieldTags      = "tags"
	FieldPeriod    = "period"
	FieldChunks    = "chunks"
	FieldRatesURL  = "rates_url"
	FieldSheetsRef = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBot       = "bot"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentRates     = "rates"
	ComponentScheduler = "scheduler"
	ComponentTelegram  = "telegram"
	ComponentSheets    = "sheets"
	ComponentWorker    = "worker"
)

// Operations defines standard operation names
const (
	OpParse    = "parse"
	OpRecord   = "record"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpReport   = "report"
	OpRefresh  = "refresh"
	OpSync     = "sync"
	OpSend     = "send"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
