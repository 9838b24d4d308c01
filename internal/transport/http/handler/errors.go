package handler

const (
	errInternalServer      = "Internal server error"
	errInvalidCredentials  = "Invalid email or password"
	errEmailTaken          = "Email is already registered"
	errNoActiveSession     = "No active session"
	errAlreadyVerified     = "Email is already verified"
	errVerificationMissing = "Provide userId, ticket or a session cookie"
	errCodeExpired         = "Verification code has expired, request a new one"
	errCodeInvalid         = "Invalid verification code"
	errCodeNotFound        = "No verification code found"
	errUserNotFound        = "User not found"
	errUnauthorized        = "Unauthorized"
	errForbidden           = "Forbidden"
	errTaskNotFound        = "Task not found"
	errTaskConflict        = "Task with this id already exists"
	errInvalidStatus       = "Status must be one of: done, failed"
)
