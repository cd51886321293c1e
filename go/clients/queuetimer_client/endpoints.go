package queuetimer_client

const (
	// Base URL
	DefaultBaseURL = "http://127.0.0.1:8000/api"

	// APIPrefix is where the service mounts everything except the connection test
	APIPrefix = "/api"

	// API Endpoints
	UsersEndpoint            = "/users/"
	TestEndpoint             = "/test/" // relative to the service root, not the API root
	AssignmentsEndpoint      = "/assignments/"
	AssignmentEndpoint       = "/assignments/%d/"
	StartAssignmentEndpoint  = "/assignments/start/%d/"
	PauseAssignmentEndpoint  = "/assignments/pause/%d/"
	ResumeAssignmentEndpoint = "/assignments/resume/%d/"
	CompleteEndpoint         = "/assignments/complete/%d/"

	// Headers
	UserIDHeader = "X-User-ID"
)
