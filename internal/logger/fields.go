package logger

// Standard field keys for structured logging.
// Use these consistently across all log statements so logs can be
// aggregated and queried per file, user or session.
const (
	KeyFileID    = "file_id"    // file being edited
	KeyVersionID = "version_id" // saved version of a file
	KeyProjectID = "project_id" // project the file belongs to
	KeyFolderID  = "folder_id"  // folder within a project
	KeyUserID    = "user_id"    // acting user
	KeySessionID = "session_id" // logical editing session (stable across tabs)
	KeyConnID    = "conn_id"    // single websocket connection
	KeyOp        = "op"         // relay operation name
	KeyError     = "error"      // error value
	KeyDuration  = "duration"   // elapsed time
	KeyCount     = "count"      // generic count
	KeyRemote    = "remote"     // client remote address
)
