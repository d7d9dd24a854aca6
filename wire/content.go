package wire

// MIMEBundle maps MIME types to renderings of a single value. The plain text
// representation under "text/plain" is the baseline every bundle carries;
// richer types ride alongside it.
type MIMEBundle map[string]any

// MIMEText is the key every displayable value provides a rendering for.
const MIMEText = "text/plain"

// TextBundle wraps a plain text rendering in a bundle.
func TextBundle(text string) MIMEBundle {
	return MIMEBundle{MIMEText: text}
}

// StatusContent is the body of a status broadcast.
func StatusContent(state string) map[string]any {
	return map[string]any{"execution_state": state}
}

// ExecuteInputContent echoes the submitted code with its execution counter.
func ExecuteInputContent(code string, count int) map[string]any {
	return map[string]any{
		"code":            code,
		"execution_count": count,
	}
}

// StreamContent is the body of a stream broadcast. Name is StreamStdout or
// StreamStderr.
func StreamContent(name, text string) map[string]any {
	return map[string]any{
		"name": name,
		"text": text,
	}
}

// ExecuteResultContent carries the rendered value of an execution together
// with the counter of the execution that produced it.
func ExecuteResultContent(count int, data MIMEBundle) map[string]any {
	return map[string]any{
		"execution_count": count,
		"data":            data,
		"metadata":        map[string]any{},
	}
}

// DisplayDataContent carries a rich display value emitted during execution.
func DisplayDataContent(data MIMEBundle, metadata map[string]any) map[string]any {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"data":     data,
		"metadata": metadata,
	}
}

// ExecuteOKContent is the body of a successful execute reply.
func ExecuteOKContent(count int) map[string]any {
	return map[string]any{
		"status":           StatusOK,
		"execution_count":  count,
		"payload":          []any{},
		"user_expressions": map[string]any{},
	}
}

// ExecuteAbortContent is the body of an aborted execute reply.
func ExecuteAbortContent(count int) map[string]any {
	return map[string]any{
		"status":          StatusAbort,
		"execution_count": count,
	}
}

// ErrorContent describes a failure in the shape replies and error broadcasts
// share: exception name, exception value, and a traceback of display lines.
func ErrorContent(ename, evalue string, traceback []string) map[string]any {
	if traceback == nil {
		traceback = []string{}
	}
	tb := make([]any, len(traceback))
	for i, line := range traceback {
		tb[i] = line
	}
	return map[string]any{
		"status":    StatusError,
		"ename":     ename,
		"evalue":    evalue,
		"traceback": tb,
	}
}
