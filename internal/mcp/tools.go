package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("routine_list",
	mcp.WithDescription("List saved routines with their commands."),
	mcp.WithBoolean("names_only", mcp.Description("Return only routine names")),
)

var getToolDef = mcp.NewTool("routine_get",
	mcp.WithDescription("Get one routine. format=json (default) returns the definition, draft returns the editable text, markdown returns a summary card."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Routine nickname")),
	mcp.WithString("format", mcp.Description("json, draft or markdown"), mcp.Enum("json", "draft", "markdown")),
)

var saveToolDef = mcp.NewTool("routine_save",
	mcp.WithDescription("Create, update or rename a routine. Each non-blank line of intents must be a command the interpreter understands. Set previous_name to the routine's current name when editing; a different nickname renames it."),
	mcp.WithString("nickname", mcp.Required(), mcp.Description("Routine nickname")),
	mcp.WithString("intents", mcp.Required(), mcp.Description("Commands, one per line")),
	mcp.WithString("previous_name", mcp.Description("Name the routine was opened under")),
)

var deleteToolDef = mcp.NewTool("routine_delete",
	mcp.WithDescription("Delete a routine. Deleting a routine that does not exist succeeds."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Routine nickname")),
)

var validateToolDef = mcp.NewTool("routine_validate",
	mcp.WithDescription("Check a routine draft without saving it."),
	mcp.WithString("nickname", mcp.Required(), mcp.Description("Routine nickname")),
	mcp.WithString("intents", mcp.Required(), mcp.Description("Commands, one per line")),
	mcp.WithString("previous_name", mcp.Description("Name the routine was opened under")),
)

var parseToolDef = mcp.NewTool("routine_parse",
	mcp.WithDescription("Interpret one command line and return its intent context."),
	mcp.WithString("utterance", mcp.Required(), mcp.Description("One command")),
	mcp.WithBoolean("allow_fallback", mcp.Description("Accept the fallback search intent for unmatched text")),
)
