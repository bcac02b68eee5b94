package orchestrator

import "fmt"

const screeningSystemPrompt = "You are a relevance screener for a meeting AI assistant. " +
	"Analyze the transcript segment and determine if it contains " +
	"actionable information (decisions, tasks, risks, ideas). " +
	`Respond with JSON: {"relevant": true/false, "reason": "..."}`

const analysisSystemPrompt = "You are an AI meeting analyst. Analyze the transcript and provide: " +
	"1) Key decisions made, 2) Action items with owners, " +
	"3) Risks identified, 4) Ideas worth exploring. " +
	"Be concise and structured. Use JSON format."

const copilotSystemPrompt = `You are a hidden AI copilot during a live meeting. The user asks you
questions silently while the meeting is happening. You have the full
transcript of everything said so far. Nobody else in the meeting knows
you exist.

## Rules
- Keep responses SHORT (2-5 lines max). The user is in a meeting.
- Be actionable: give the user something they can say RIGHT NOW
- If someone proposes something risky, point it out diplomatically
- Speak in the same language the user writes
- Never repeat what was already said in the transcript
- Format: use bullet points for multiple items, plain text for opinions`

const summarySystemPrompt = `You are an expert meeting summarizer. Analyze the full meeting transcript
and produce a structured JSON summary.

## Output Format (strict JSON)

{
  "title": "Meeting title (inferred from context)",
  "key_topics": ["topic1", "topic2", ...],
  "decisions": [
    {"what": "Description of the decision", "who": "Person(s) involved"}
  ],
  "action_items": [
    {"task": "What needs to be done", "owner": "Person responsible", "deadline": "If mentioned"}
  ],
  "risks": [
    {"description": "Risk identified", "severity": "high|medium|low"}
  ],
  "next_steps": ["Next step 1", "Next step 2"],
  "summary": "2-3 sentence executive summary of the entire meeting"
}

## Rules
- Extract ONLY what was explicitly said, never invent information
- If no owner was mentioned for an action item, use "TBD"
- If no deadline was mentioned, use "Not specified"
- Keep descriptions concise (1-2 lines each)
- Respond with ONLY the JSON object, no extra text`

// analysisContextLimit keeps the full-transcript context near 1000 tokens.
const analysisContextLimit = 4000

func analysisPrompt(segment, context, reason string) string {
	if len(context) > analysisContextLimit {
		context = context[:analysisContextLimit]
	}
	return fmt.Sprintf(
		"Analyze this meeting transcript segment and provide a structured insight.\n\n"+
			"Context: %s\n\n"+
			"Relevant segment: %s\n\n"+
			"Screening reason: %s\n\n"+
			"Respond with JSON:\n"+
			"{\n"+
			"  \"title\": \"Brief insight title (1 line)\",\n"+
			"  \"analysis\": \"Your analysis (2-3 sentences)\",\n"+
			"  \"recommendation\": \"Concrete actionable recommendation\",\n"+
			"  \"category\": \"decision|action|risk|idea\"\n"+
			"}",
		context, segment, reason)
}

func copilotPrompt(question, transcriptContext string) string {
	if transcriptContext == "" {
		return fmt.Sprintf(
			"The meeting just started and there's no transcript yet.\n\n"+
				"## User's Question\n\n%s\n\n"+
				"Answer concisely (2-5 lines max).",
			question)
	}
	return fmt.Sprintf(
		"## Meeting Transcript (so far)\n\n%s\n\n---\n\n"+
			"## User's Question\n\n%s\n\n"+
			"Answer concisely (2-5 lines max). The user is in the meeting right now.",
		transcriptContext, question)
}

func summaryPrompt(fullTranscript string) string {
	return fmt.Sprintf(
		"## Full Meeting Transcript\n\n%s\n\n---\n\n"+
			"Generate the structured JSON summary now.",
		fullTranscript)
}
