package analysis

import (
	"fmt"
	"strings"

	"github.com/robpineda/voiceonstudio/pkg/types"
)

// noScriptNotice is embedded in the prompt when the caller supplied no
// reference script, narrowing the model's judgment to delivery quality alone.
const noScriptNotice = "No reference script was supplied, so judge only fluency and coherence."

const promptInstructions = `You are an audio production assistant reviewing a voice actor's recorded take.

The transcript below annotates every word with its start and end time in seconds, in the form [start-end] word. A "perfect take" is a contiguous span of speech that is fluent (no stumbles, filler words, or restarts), coherent, and accurate to the reference script when one is given.

Use the timing gaps between consecutive words to judge delivery: a large gap between one word's end and the next word's start usually indicates an unnatural pause, a restart, or a mistake, and such spans should not be part of a perfect take.

Identify every candidate perfect take in the transcript. For each one, report:
- "start": the start time of the segment's first word, in seconds
- "end": the end time of the segment's last word, in seconds
- "confidence": your confidence that the segment is a perfect take, between 0.0 and 1.0

Segments must not overlap. If no span qualifies, return an empty segments array.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "segments": [
    {"start": <seconds>, "end": <seconds>, "confidence": <0.0-1.0>}
  ]
}`

// BuildPrompt renders the timed word sequence and optional reference script
// into the model instruction. Pure function, no I/O.
//
// Each word is rendered as "[0.00s-0.40s] word" and joined with single
// spaces. When the transcript carries no word timings at all, the plain
// transcript text is used instead; the analysis degrades but still works.
func BuildPrompt(transcript *types.Transcript, script string) string {
	var sb strings.Builder
	sb.WriteString(promptInstructions)
	sb.WriteString("\n\n")

	if script != "" {
		sb.WriteString("Reference script:\n")
		sb.WriteString(script)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(noScriptNotice)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Annotated transcript:\n")
	sb.WriteString(annotate(transcript))
	return sb.String()
}

func annotate(transcript *types.Transcript) string {
	if transcript == nil {
		return ""
	}
	if len(transcript.Words) == 0 {
		return transcript.Text
	}
	parts := make([]string, len(transcript.Words))
	for i, w := range transcript.Words {
		parts[i] = fmt.Sprintf("[%.2fs-%.2fs] %s", w.StartSeconds(), w.EndSeconds(), w.Text)
	}
	return strings.Join(parts, " ")
}
