package log

import "caja/internal/core"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldOperation  = "operation"
	FieldGroupID    = "group_id"
	FieldMemberID   = "member_id"
	FieldActorID    = "actor_id"
	FieldActorRole  = "actor_role"
	FieldAmount     = "amount_cents"
	FieldEventID    = "event_id"
	FieldEventKind  = "event_kind"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentOutbox    = "outbox"
	ComponentScheduler = "scheduler"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations are the ledger mutations that get a commit log line.
const (
	OpRegisterGroup    = "register_group"
	OpUpdatePolicy     = "update_group_policy"
	OpRegisterMember   = "register_member"
	OpRemoveMember     = "remove_member"
	OpDeposit          = "deposit_savings"
	OpOriginateLoan    = "originate_loan"
	OpApplyPayment     = "apply_payment"
	OpRecordAttendance = "record_attendance"
	OpApplyFine        = "apply_fine"
	OpPayFine          = "pay_fine"
	OpPlanCycle        = "plan_cycle"
	OpActivateCycle    = "activate_cycle"
	OpCloseCycle       = "close_cycle"
	OpShutdown         = "shutdown"
	OpStartup          = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message and its ledger kind.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		if kind := core.KindOf(err); kind != "" {
			f[FieldErrorKind] = string(kind)
		}
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithActor adds the caller identity.
func (f LogFields) WithActor(a core.Actor) LogFields {
	f[FieldActorID] = a.ID
	f[FieldActorRole] = a.Role
	return f
}

// WithLedger adds the group and, when non-zero, the amount moved.
func (f LogFields) WithLedger(groupID int64, amount core.Money) LogFields {
	f[FieldGroupID] = groupID
	if amount.Cents != 0 {
		f[FieldAmount] = amount.Cents
	}
	return f
}

// WithEvent adds outbox event fields.
func (f LogFields) WithEvent(ev core.Event) LogFields {
	f[FieldEventID] = ev.ID
	f[FieldEventKind] = ev.Kind
	f[FieldGroupID] = ev.GroupID
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
