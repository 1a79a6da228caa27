package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Extraction errors (100-199)
	ErrCodeEmptyResponse    ErrorCode = 100
	ErrCodeNoObjectFound    ErrorCode = 101
	ErrCodeMalformedPayload ErrorCode = 102

	// Validation errors (200-299)
	ErrCodeMissingField          ErrorCode = 200
	ErrCodeUnknownAsset          ErrorCode = 201
	ErrCodeInvalidSignal         ErrorCode = 202
	ErrCodeNotionalOutOfRange    ErrorCode = 203
	ErrCodeZeroNotional          ErrorCode = 204
	ErrCodeLeverageOutOfRange    ErrorCode = 205
	ErrCodeConfidenceOutOfRange  ErrorCode = 206
	ErrCodeInvalidExitPlan       ErrorCode = 207
	ErrCodeJustificationTooShort ErrorCode = 208
	ErrCodeNonFiniteNumber       ErrorCode = 209

	// Risk errors (300-399)
	ErrCodePositionSizeExceeded ErrorCode = 300
	ErrCodeLeverageExceeded     ErrorCode = 301
	ErrCodeDailyLossLimit       ErrorCode = 302
	ErrCodeExposureExceeded     ErrorCode = 303
	ErrCodeDuplicatePosition    ErrorCode = 304
	ErrCodeInsufficientBalance  ErrorCode = 305
	ErrCodeNotionalTooSmall     ErrorCode = 306
	ErrCodeNoPositionToClose    ErrorCode = 307

	// Ledger errors (400-499)
	ErrCodePositionAlreadyOpen  ErrorCode = 400
	ErrCodeNoSuchOpenPosition   ErrorCode = 401
	ErrCodeInvalidPrice         ErrorCode = 402
	ErrCodeInvalidPositionSide  ErrorCode = 403
	ErrCodeInvalidPositionState ErrorCode = 404

	// Account errors (500-599)
	ErrCodeInsufficientHistory ErrorCode = 500
	ErrCodeMissingAssetPrice   ErrorCode = 501

	// Configuration errors (600-699)
	ErrCodeInvalidConfiguration ErrorCode = 600
	ErrCodeNoTradableAssets     ErrorCode = 601
	ErrCodeInvalidFeeRate       ErrorCode = 602
	ErrCodeConfigReadFailed     ErrorCode = 603

	// Audit errors (700-799)
	ErrCodeAuditInitFailed  ErrorCode = 700
	ErrCodeAuditWriteFailed ErrorCode = 701
	ErrCodeAuditQueryFailed ErrorCode = 702
	ErrCodeAuditStoreClosed ErrorCode = 703
)
