package capability

import "encoding/json"

// Canonical capability names.
const (
	TodoistUserInfo           = "todoist.user_info"
	TodoistAddTasks           = "todoist.add_tasks"
	TodoistFindCompletedTasks = "todoist.find_completed_tasks"
	VaultReadFile             = "vault.read_file"
	VaultWriteFile            = "vault.write_file"
	VaultListFiles            = "vault.list_files"
)

// builtinSpecs is the fixed capability table. Input schemas declare the
// required fields the runtime enforces before dispatch; output schemas
// document the shape of Result.Data on success.
var builtinSpecs = []Spec{
	{
		Name:           TodoistUserInfo,
		Description:    "Get current Todoist user profile.",
		ParityRequired: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"userId": {"type": "string"},
				"email": {"type": "string"},
				"name": {"type": "string"}
			},
			"required": ["userId", "name"]
		}`),
	},
	{
		Name:           TodoistAddTasks,
		Description:    "Create one or many Todoist tasks.",
		ParityRequired: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"tasks": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"content": {"type": "string"},
							"description": {"type": "string"},
							"dueString": {"type": "string"},
							"priority": {"type": "integer"},
							"projectId": {"type": "string"}
						},
						"required": ["content"]
					}
				}
			},
			"required": ["tasks"]
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"created": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"id": {"type": "string"},
							"content": {"type": "string"}
						},
						"required": ["id", "content"]
					}
				}
			},
			"required": ["created"]
		}`),
	},
	{
		Name:           TodoistFindCompletedTasks,
		Description:    "Find completed tasks in Todoist.",
		ParityRequired: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"since": {"type": "string"},
				"until": {"type": "string"},
				"limit": {"type": "integer"}
			}
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"tasks": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"id": {"type": "string"},
							"content": {"type": "string"},
							"completedAt": {"type": "string"}
						},
						"required": ["id", "content"]
					}
				}
			},
			"required": ["tasks"]
		}`),
	},
	{
		Name:           VaultReadFile,
		Description:    "Read text file from vault path.",
		ParityRequired: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"path": {"type": "string"}},
			"required": ["path"]
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"exists": {"type": "boolean"},
				"content": {"type": "string"}
			},
			"required": ["path", "exists", "content"]
		}`),
	},
	{
		Name:           VaultWriteFile,
		Description:    "Write or append text to a vault file.",
		ParityRequired: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string"},
				"mode": {"type": "string", "enum": ["overwrite", "append"]}
			},
			"required": ["path", "content"]
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"writtenBytes": {"type": "integer"}
			},
			"required": ["path", "writtenBytes"]
		}`),
	},
	{
		Name:           VaultListFiles,
		Description:    "List files in a vault directory by optional pattern.",
		ParityRequired: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"dir": {"type": "string"},
				"pattern": {"type": "string"},
				"limit": {"type": "integer"}
			}
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"files": {"type": "array", "items": {"type": "string"}}
			},
			"required": ["files"]
		}`),
	},
}
