package graphql

import "strings"

// Operation is one of the fixed named actions the API understands
type Operation string

const (
	OpHello             Operation = "hello"
	OpAPIInfo           Operation = "apiInfo"
	OpGetChatSession    Operation = "getChatSession"
	OpCreateChatSession Operation = "createChatSession"
	OpClearChatSession  Operation = "clearChatSession"
	OpDeleteChatSession Operation = "deleteChatSession"
	OpSendMessage       Operation = "sendMessage"
	OpUnknown           Operation = "unknown"
)

// classifierOrder fixes the priority of substring checks. A query mentioning
// several operation names classifies as whichever is checked first, so the
// order itself is part of the API contract.
var classifierOrder = []Operation{
	OpHello,
	OpAPIInfo,
	OpGetChatSession,
	OpCreateChatSession,
	OpClearChatSession,
	OpDeleteChatSession,
	OpSendMessage,
}

// Classify selects the operation a raw query represents by testing whether
// the query contains each operation's name, in priority order. There is no
// parsing; substring containment is the whole algorithm.
func Classify(query string) Operation {
	for _, op := range classifierOrder {
		if strings.Contains(query, string(op)) {
			return op
		}
	}
	return OpUnknown
}
