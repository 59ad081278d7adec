package constants

type ContextKey string

const (
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	LoggerKey    ContextKey = "logger"
	TenantKey    ContextKey = "tenant"
	AppKey       ContextKey = "app"
	RequestStart ContextKey = "requestStart"
)

// TenantHeader carries the owner scope for API calls.
const TenantHeader = "X-Tenant-ID"
