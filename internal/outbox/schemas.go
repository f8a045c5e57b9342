package outbox

const activityIngestedSchema = `{
  "type": "object",
  "title": "ActivityIngested",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "source": {"type": "string"},
    "activity_type": {"type": "string"},
    "repository": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"},
    "score": {"type": "integer"}
  },
  "required": ["activity_id", "user_id", "source", "activity_type", "created_at", "score"],
  "additionalProperties": false
}`

const syncCompletedSchema = `{
  "type": "object",
  "title": "SyncCompleted",
  "properties": {
    "user_id": {"type": "string"},
    "source": {"type": "string"},
    "added": {"type": "integer"},
    "skipped": {"type": "integer"},
    "error_count": {"type": "integer"},
    "finished_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "source", "added", "skipped", "error_count", "finished_at"],
  "additionalProperties": false
}`
