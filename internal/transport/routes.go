package transport

// Пути API воркера.
const (
	pathCapabilities = "/api/capabilities"

	pathV1Start    = "/api/v1/scripts/start"
	pathV1Status   = "/api/v1/scripts/status"
	pathV1Complete = "/api/v1/scripts/complete"

	pathV2Start    = "/api/v2/scripts/start"
	pathV2Status   = "/api/v2/scripts/status"
	pathV2Cancel   = "/api/v2/scripts/cancel"
	pathV2Complete = "/api/v2/scripts/complete"

	pathV3Start    = "/api/v3/scripts/start"
	pathV3Status   = "/api/v3/scripts/status"
	pathV3Cancel   = "/api/v3/scripts/cancel"
	pathV3Complete = "/api/v3/scripts/complete"
)
