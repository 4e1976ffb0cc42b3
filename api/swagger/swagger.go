package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MentorHub API",
        "description": "Scheduling core for mentoring sessions",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Slots", "description": "Bookable slot resolution"},
        {"name": "Bookings", "description": "Unified booking ledger"},
        {"name": "Commitments", "description": "Programs and discipline subscriptions"},
        {"name": "Availability", "description": "Weekly windows and blackouts"},
        {"name": "Tasks", "description": "Task postponement"}
    ],
    "paths": {
        "/mentors/{id}/slots": {
            "get": {
                "tags": ["Slots"],
                "summary": "Resolve bookable slots for a mentor",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "callType", "in": "query", "type": "string", "required": true, "enum": ["DISCIPLINE", "MENTORSHIP"]},
                    {"name": "from", "in": "query", "type": "string", "required": true},
                    {"name": "to", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Resolved slots", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookings",
                "parameters": [
                    {"name": "mentorId", "in": "query", "type": "string"},
                    {"name": "participantId", "in": "query", "type": "string"},
                    {"name": "callType", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Bookings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Reserve a one-off session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReserveRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Timeline conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get a booking",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Booking", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/attendance": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Record attendance for a session",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Attendance outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/commitments/program": {
            "post": {
                "tags": ["Commitments"],
                "summary": "Enroll a participant into a mentorship program",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollProgramRequest"}}
                ],
                "responses": {
                    "201": {"description": "Schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Timeline conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/commitments/discipline": {
            "post": {
                "tags": ["Commitments"],
                "summary": "Subscribe a participant to the discipline term",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubscribeDisciplineRequest"}}
                ],
                "responses": {
                    "201": {"description": "Schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Timeline conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/commitments/{id}": {
            "get": {
                "tags": ["Commitments"],
                "summary": "Get a commitment with its next session",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Commitment schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/commitments/{id}/withdraw": {
            "post": {
                "tags": ["Commitments"],
                "summary": "Withdraw from a commitment and cancel its remaining sessions",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Withdrawal outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/commitments/{id}/sessions": {
            "get": {
                "tags": ["Commitments"],
                "summary": "List generated sessions for a commitment",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Sessions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/commitments/{id}/attendance/export": {
            "get": {
                "tags": ["Commitments"],
                "summary": "Export the attendance record",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered report"}
                }
            }
        },
        "/mentors/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "List weekly windows",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Windows", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Replace the weekly window set for a call type",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceWindowsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replaced windows", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availability/windows/{id}": {
            "delete": {
                "tags": ["Availability"],
                "summary": "Delete a weekly window",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Confirmed future bookings block removal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mentors/{id}/exceptions": {
            "get": {
                "tags": ["Availability"],
                "summary": "List blackout periods",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Exceptions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Availability"],
                "summary": "Declare a blackout period",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExceptionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exceptions/{id}": {
            "delete": {
                "tags": ["Availability"],
                "summary": "Delete a blackout period",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/tasks/{id}/postpone": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Postpone a task's due date",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PostponeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated task", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tasks/{id}/alerts": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List escalation alerts for a task",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Alerts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ReserveRequest": {
            "type": "object",
            "required": ["mentor_id", "participant_id", "call_type", "start_at"],
            "properties": {
                "mentor_id": {"type": "string"},
                "participant_id": {"type": "string"},
                "call_type": {"type": "string", "enum": ["DISCIPLINE", "MENTORSHIP"]},
                "start_at": {"type": "string", "format": "date-time"},
                "duration_minutes": {"type": "integer"}
            }
        },
        "MarkAttendanceRequest": {
            "type": "object",
            "required": ["present"],
            "properties": {
                "present": {"type": "boolean"}
            }
        },
        "WeeklySlot": {
            "type": "object",
            "required": ["day_of_week", "time_of_day"],
            "properties": {
                "day_of_week": {"type": "integer", "minimum": 0, "maximum": 6},
                "time_of_day": {"type": "string", "example": "06:00"}
            }
        },
        "EnrollProgramRequest": {
            "type": "object",
            "required": ["participant_id", "mentor_id", "slot1", "slot2", "total_weeks"],
            "properties": {
                "participant_id": {"type": "string"},
                "mentor_id": {"type": "string"},
                "slot1": {"$ref": "#/definitions/WeeklySlot"},
                "slot2": {"$ref": "#/definitions/WeeklySlot"},
                "total_weeks": {"type": "integer"}
            }
        },
        "SubscribeDisciplineRequest": {
            "type": "object",
            "required": ["participant_id", "mentor_id", "slot1", "slot2"],
            "properties": {
                "participant_id": {"type": "string"},
                "mentor_id": {"type": "string"},
                "slot1": {"$ref": "#/definitions/WeeklySlot"},
                "slot2": {"$ref": "#/definitions/WeeklySlot"}
            }
        },
        "ReplaceWindowsRequest": {
            "type": "object",
            "required": ["call_type"],
            "properties": {
                "call_type": {"type": "string", "enum": ["DISCIPLINE", "MENTORSHIP"]},
                "windows": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "day_of_week": {"type": "integer"},
                            "start": {"type": "string", "example": "05:00"},
                            "end": {"type": "string", "example": "08:00"},
                            "active": {"type": "boolean"}
                        }
                    }
                }
            }
        },
        "CreateExceptionRequest": {
            "type": "object",
            "required": ["start_date", "end_date"],
            "properties": {
                "start_date": {"type": "string", "example": "2026-01-10"},
                "end_date": {"type": "string", "example": "2026-01-20"}
            }
        },
        "PostponeRequest": {
            "type": "object",
            "required": ["new_due_at"],
            "properties": {
                "new_due_at": {"type": "string", "format": "date-time"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
