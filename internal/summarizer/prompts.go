package summarizer

const promptQueryRequest = `You are part of an interactive debugger for LLM agents. Summarize the prompt the agent is about to send to its LLM in one short line. Focus on what the agent is asking for and omit anything already covered by the previous prompt, which is quoted below.`

const promptQueryResponse = `You are part of an interactive debugger for LLM agents. Summarize the LLM's response in one short line, stating the decision or content it contains.`

const promptToolCall = `You are part of an interactive debugger for LLM agents. Summarize the tool invocation below in one short line: which tool is called and with what intent.`

const promptToolResult = `You are part of an interactive debugger for LLM agents. Summarize the tool result below in one short line, stating the outcome.`
